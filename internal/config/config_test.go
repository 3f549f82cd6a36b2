package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"REPORT_CACHE_TTL_SECONDS", "AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES", "MANAGER_PIN",
		"KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX", "CATALOG_REFRESH_SECONDS", "SHOP_NAME", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
	if cfg.Address() != ":8080" || cfg.ShopName != "Family Cake" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "familypos.toml")
	content := `port = "9090"
shop_name = "Corner Shop"
report_cache_ttl_seconds = 600
kafka_brokers = "k1:9092,k2:9092"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("expected env to override file port, got %q", cfg.Port)
	}
	if cfg.ShopName != "Corner Shop" || cfg.KafkaBrokers != "k1:9092,k2:9092" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.ReportCacheTTL() != 10*time.Minute {
		t.Fatalf("expected 10m report ttl, got %s", cfg.ReportCacheTTL())
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SHOP_NAME=Dot Env Shop\nPORT=6060\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("PORT", "5050")
	// godotenv skips keys that exist, even when empty.
	os.Unsetenv("SHOP_NAME")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShopName != "Dot Env Shop" {
		t.Fatalf("expected shop name from .env, got %q", cfg.ShopName)
	}
	if cfg.Port != "5050" {
		t.Fatalf("expected existing env to win over .env, got %q", cfg.Port)
	}
}

func TestLoadRejectsBrokenConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("port = \n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected decode error for broken config file")
	}
}
