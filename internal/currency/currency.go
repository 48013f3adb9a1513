// Package currency converts and formats USD/UZS amounts using a single
// scalar exchange rate. All arithmetic is plain floating point; this is a
// display-layer utility, money of record is kept in int64 cents elsewhere.
package currency

import (
	"strconv"
	"strings"

	"svetafor/backend/internal/domain"
)

// ParseDecimal is the one boundary where decimal-as-string input is
// normalized. Clients send values with either "." or "," as the decimal
// separator and may include whitespace thousand separators ("12 500,5").
func ParseDecimal(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ' ', ' ':
			return -1
		case ',':
			return '.'
		}
		return r
	}, raw)

	return strconv.ParseFloat(cleaned, 64)
}

// Convert converts amount from one currency to another using a single
// USD->UZS rate. Same-currency conversion is the identity regardless of the
// rate. Any pair that is neither USD->UZS nor UZS->USD (or a non-positive
// rate) returns the amount unchanged; the permissive fallback is deliberate,
// callers must never crash on an odd currency code.
func Convert(amount float64, from domain.Currency, rate float64, to domain.Currency) float64 {
	if from == to {
		return amount
	}
	if rate <= 0 {
		return amount
	}
	switch {
	case from == domain.CurrencyUSD && to == domain.CurrencyUZS:
		return amount * rate
	case from == domain.CurrencyUZS && to == domain.CurrencyUSD:
		return amount / rate
	}
	return amount
}

// Unformat is an alias of Convert: "unformatting" a displayed amount back
// into another currency is the same numeric operation.
var Unformat = Convert

// Format renders an amount for display: "$1 234.56" for USD (two decimals,
// dollar prefix), "15 000 so'm" for UZS (no decimals), and "12 XYZ" for any
// other non-empty code. An empty code cannot be formatted and yields "".
func Format(amount float64, code domain.Currency) string {
	switch code {
	case domain.CurrencyUSD:
		return "$" + groupThousands(strconv.FormatFloat(amount, 'f', 2, 64))
	case domain.CurrencyUZS:
		return groupThousands(strconv.FormatFloat(amount, 'f', 0, 64)) + " so'm"
	case "":
		return ""
	}
	return groupThousands(strconv.FormatFloat(amount, 'f', 0, 64)) + " " + string(code)
}

// groupThousands inserts space group separators into the integer part of an
// already-rendered decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot:]
	}

	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}
