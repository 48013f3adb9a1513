package currency

import (
	"math"
	"testing"

	"svetafor/backend/internal/domain"
)

func TestConvertRoundTrip(t *testing.T) {
	amounts := []float64{0, 1, 10.1, 12345.67, 0.03, 999999}
	rate := 12650.0

	for _, amount := range amounts {
		uzs := Convert(amount, domain.CurrencyUSD, rate, domain.CurrencyUZS)
		back := Convert(uzs, domain.CurrencyUZS, rate, domain.CurrencyUSD)
		if math.Abs(back-amount) > 1e-9*math.Max(1, amount) {
			t.Fatalf("round trip of %v came back as %v", amount, back)
		}
	}
}

func TestConvertIdentitySameCurrency(t *testing.T) {
	for _, code := range []domain.Currency{domain.CurrencyUSD, domain.CurrencyUZS, "EUR"} {
		for _, rate := range []float64{0, -5, 12000} {
			if got := Convert(42.5, code, rate, code); got != 42.5 {
				t.Fatalf("Convert(42.5, %s, %v, %s) = %v, want 42.5", code, rate, code, got)
			}
		}
	}
}

func TestConvertUnknownPairFallsBackToRawAmount(t *testing.T) {
	if got := Convert(77, "EUR", 12000, domain.CurrencyUZS); got != 77 {
		t.Fatalf("expected unknown pair to return amount unconverted, got %v", got)
	}
	if got := Convert(77, domain.CurrencyUSD, 12000, "EUR"); got != 77 {
		t.Fatalf("expected unknown target to return amount unconverted, got %v", got)
	}
}

func TestConvertCommaDecimalSeparatorScenario(t *testing.T) {
	amount, err := ParseDecimal("10,1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := Convert(amount, domain.CurrencyUSD, 12000, domain.CurrencyUZS)
	if math.Abs(got-121200) > 1e-6 {
		t.Fatalf("expected 121200, got %v", got)
	}
}

func TestParseDecimalNormalizesSeparators(t *testing.T) {
	cases := map[string]float64{
		"10.1":      10.1,
		"10,1":      10.1,
		"12 500,5":  12500.5,
		"1 234 567": 1234567,
		" 3 ":       3,
	}
	for raw, want := range cases {
		got, err := ParseDecimal(raw)
		if err != nil {
			t.Fatalf("ParseDecimal(%q) failed: %v", raw, err)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("ParseDecimal(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParseDecimalRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "abc", "1.2.3", "12,34,5"} {
		if _, err := ParseDecimal(raw); err == nil {
			t.Fatalf("expected ParseDecimal(%q) to fail", raw)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	if got := Format(1234.56, domain.CurrencyUSD); got != "$1 234.56" {
		t.Fatalf("expected $1 234.56, got %q", got)
	}
	if got := Format(7, domain.CurrencyUSD); got != "$7.00" {
		t.Fatalf("expected exactly two decimals, got %q", got)
	}
	if got := Format(-1234.5, domain.CurrencyUSD); got != "$-1 234.50" {
		t.Fatalf("unexpected negative formatting %q", got)
	}
}

func TestFormatUZS(t *testing.T) {
	if got := Format(15000, domain.CurrencyUZS); got != "15 000 so'm" {
		t.Fatalf("expected 15 000 so'm, got %q", got)
	}
	if got := Format(121200.4, domain.CurrencyUZS); got != "121 200 so'm" {
		t.Fatalf("expected zero decimals for UZS, got %q", got)
	}
}

func TestFormatOtherAndEmptyCodes(t *testing.T) {
	if got := Format(12.7, "EUR"); got != "13 EUR" {
		t.Fatalf("expected raw code suffix, got %q", got)
	}
	if got := Format(12.7, ""); got != "" {
		t.Fatalf("expected empty result for unformattable code, got %q", got)
	}
}

func TestUnformatIsConvertAlias(t *testing.T) {
	a := Convert(10, domain.CurrencyUSD, 12000, domain.CurrencyUZS)
	b := Unformat(10, domain.CurrencyUSD, 12000, domain.CurrencyUZS)
	if a != b {
		t.Fatalf("Unformat diverged from Convert: %v vs %v", b, a)
	}
}
