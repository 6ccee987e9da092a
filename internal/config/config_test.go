package config

import "testing"

func TestFromEnvDoesNotInjectWeakSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	cfg := FromEnv()
	if cfg.SessionSecret != "" {
		t.Fatalf("expected empty SESSION_SECRET when unset, got %q", cfg.SessionSecret)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("OUTBOX_BUFFER", "")
	t.Setenv("CURRENCY_SYMBOL", "")

	cfg := FromEnv()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Address())
	}
	if cfg.LogEncoding != "json" || cfg.LogLevel != "info" {
		t.Fatalf("expected production logging defaults, got %s/%s", cfg.LogEncoding, cfg.LogLevel)
	}
	if cfg.OutboxBuffer != 256 {
		t.Fatalf("expected outbox buffer 256, got %d", cfg.OutboxBuffer)
	}
	if cfg.CurrencySymbol != "₺" {
		t.Fatalf("expected lira symbol, got %q", cfg.CurrencySymbol)
	}
}

func TestFromEnvDevelopmentLogging(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_ENCODING", "")

	cfg := FromEnv()
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development mode")
	}
	if cfg.LogEncoding != "console" || cfg.LogLevel != "debug" {
		t.Fatalf("expected console/debug, got %s/%s", cfg.LogEncoding, cfg.LogLevel)
	}
}

func TestFromEnvRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("ADVISORY_CACHE_TTL_SECONDS", "0")
	t.Setenv("SESSION_TTL_MINUTES", "abc")
	t.Setenv("SEED_CATALOG", "yes please")

	cfg := FromEnv()
	if cfg.AdvisoryCacheTTLSeconds != 600 {
		t.Fatalf("expected ttl fallback 600, got %d", cfg.AdvisoryCacheTTLSeconds)
	}
	if cfg.SessionTTLMinutes != 720 {
		t.Fatalf("expected session ttl fallback 720, got %d", cfg.SessionTTLMinutes)
	}
	if cfg.SeedCatalog {
		t.Fatalf("expected seed catalog disabled on malformed flag")
	}
}
