package config_test

import (
	"testing"
	"time"

	"stock-ledger/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/stock")
	t.Setenv("LOCK_TIMEOUT", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("expected default lock timeout 2s, got %s", cfg.LockTimeout)
	}
	if cfg.Embedded.Port != 5433 {
		t.Errorf("expected default embedded port 5433, got %d", cfg.Embedded.Port)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/stock")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("STOCK_CACHE_TTL", "1m")
	t.Setenv("STOCK_COMPANY", "1000")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LockTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", cfg.LockTimeout)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("expected 1m cache TTL, got %s", cfg.CacheTTL)
	}
	if cfg.CLI.Company != "1000" {
		t.Errorf("expected company 1000, got %s", cfg.CLI.Company)
	}
}

func TestLoad_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDED_POSTGRES", "false")

	if _, err := config.Load(); err == nil {
		t.Error("expected error when neither DATABASE_URL nor EMBEDDED_POSTGRES is set")
	}
}

func TestLoad_EmbeddedWithoutURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDED_POSTGRES", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Embedded.Enabled {
		t.Error("expected embedded mode enabled")
	}
}

func TestLoadForToken_NeedsNoDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDED_POSTGRES", "false")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STOCK_COMPANY", "1000")

	cfg, err := config.LoadForToken()
	if err != nil {
		t.Fatalf("LoadForToken failed: %v", err)
	}
	if cfg.JWTSecret != "s3cret" || cfg.CLI.Company != "1000" {
		t.Errorf("unexpected token config %+v", cfg)
	}
}

func TestLoadForToken_RequiresSecretAndCompany(t *testing.T) {
	tests := []struct {
		name, secret, company string
	}{
		{"no secret", "", "1000"},
		{"no company", "s3cret", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("STOCK_COMPANY", tt.company)
			if _, err := config.LoadForToken(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
