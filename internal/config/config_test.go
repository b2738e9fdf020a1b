package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("EXTRACTOR_TIMEOUT", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")

	cfg := Load()

	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.ExtractorTimeout != 30*time.Second {
		t.Fatalf("expected 30s extractor timeout, got %s", cfg.ExtractorTimeout)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected 10MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.AdminRole != "ADMIRAL" {
		t.Fatalf("expected ADMIRAL admin role, got %q", cfg.AdminRole)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EXTRACTOR_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DATABASE_URL", "postgres://x:y@db:5432/z")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.ExtractorTimeout != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.ExtractorTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.DBURL != "postgres://x:y@db:5432/z" {
		t.Fatalf("unexpected db url: %s", cfg.DBURL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("CHARGE_LEASE_TTL", "-3s")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Fatalf("expected fallback port, got %d", cfg.Port)
	}
	if cfg.ChargeLeaseTTL != 45*time.Second {
		t.Fatalf("expected fallback lease ttl, got %s", cfg.ChargeLeaseTTL)
	}
}
