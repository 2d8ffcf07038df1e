package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "soon")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example/")

	cfg := Load()
	if cfg.AccessTokenTTLMinutes != 480 || cfg.ReportCacheTTLSeconds != 20 {
		t.Fatalf("expected defaults, got %d %d", cfg.AccessTokenTTLMinutes, cfg.ReportCacheTTLSeconds)
	}
	if !cfg.DBAutoMigrate {
		t.Fatalf("expected auto migrate enabled")
	}
	if cfg.PublicBaseURL != "https://shop.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicBaseURL)
	}
}

func TestLoadStoreSettings(t *testing.T) {
	settings, err := LoadStoreSettings("")
	if err != nil || settings.StoreName != "Cookie Craze" || settings.TopItemsLimit != 10 {
		t.Fatalf("unexpected defaults %+v (%v)", settings, err)
	}

	path := filepath.Join(t.TempDir(), "store.yaml")
	content := "store_name: Cookie Craze Makati\ngcash_number: \"09171112222\"\ntop_items_limit: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	settings, err = LoadStoreSettings(path)
	if err != nil {
		t.Fatalf("load settings failed: %v", err)
	}
	if settings.StoreName != "Cookie Craze Makati" || settings.GCashNumber != "09171112222" || settings.TopItemsLimit != 5 {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.CurrencySymbol != "₱" {
		t.Fatalf("expected default currency symbol, got %q", settings.CurrencySymbol)
	}
}

func TestLoadStoreSettingsRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store_name: [unclosed"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if _, err := LoadStoreSettings(path); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadStoreSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error for missing file")
	}
}
