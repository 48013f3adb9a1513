package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallbacks(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SUMMARY_TTL_SECONDS", "not-a-number")
	t.Setenv("DEFAULT_STORE_ID", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.SummaryTTLSeconds != 60 {
		t.Fatalf("expected fallback summary TTL 60, got %d", cfg.SummaryTTLSeconds)
	}
	if cfg.StoreID != "store-main" {
		t.Fatalf("expected default store id, got %q", cfg.StoreID)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}
