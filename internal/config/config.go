package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is read in three layers: built-in defaults, an optional TOML file
// named by CONFIG_FILE, then environment variables. A .env file in the
// working directory is loaded into the environment first without
// overriding variables that are already set.
type Config struct {
	Port                  string `toml:"port"`
	AllowedOrigin         string `toml:"allowed_origin"`
	DatabaseURL           string `toml:"database_url"`
	RedisAddr             string `toml:"redis_addr"`
	RedisPassword         string `toml:"redis_password"`
	RedisDB               int    `toml:"redis_db"`
	ReportCacheTTLSeconds int    `toml:"report_cache_ttl_seconds"`
	AuthSecret            string `toml:"auth_secret"`
	AccessTokenTTLMinutes int    `toml:"access_token_ttl_minutes"`
	ManagerPIN            string `toml:"manager_pin"`
	KafkaBrokers          string `toml:"kafka_brokers"`
	KafkaTopicPrefix      string `toml:"kafka_topic_prefix"`
	CatalogRefreshSeconds int    `toml:"catalog_refresh_seconds"`
	ShopName              string `toml:"shop_name"`
}

func defaults() Config {
	return Config{
		Port:                  "8080",
		AllowedOrigin:         "http://127.0.0.1:3000",
		ReportCacheTTLSeconds: 86400,
		AccessTokenTTLMinutes: 480,
		KafkaTopicPrefix:      "familypos.",
		CatalogRefreshSeconds: 30,
		ShopName:              "Family Cake",
	}
}

func Load() (Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.ReportCacheTTLSeconds = getEnvInt("REPORT_CACHE_TTL_SECONDS", cfg.ReportCacheTTLSeconds)
	cfg.AuthSecret = strings.TrimSpace(getEnv("AUTH_SECRET", cfg.AuthSecret))
	cfg.AccessTokenTTLMinutes = getEnvInt("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTokenTTLMinutes)
	cfg.ManagerPIN = strings.TrimSpace(getEnv("MANAGER_PIN", cfg.ManagerPIN))
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicPrefix = getEnv("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.CatalogRefreshSeconds = getEnvInt("CATALOG_REFRESH_SECONDS", cfg.CatalogRefreshSeconds)
	cfg.ShopName = getEnv("SHOP_NAME", cfg.ShopName)

	if cfg.ReportCacheTTLSeconds < 1 {
		cfg.ReportCacheTTLSeconds = 86400
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.CatalogRefreshSeconds < 0 {
		cfg.CatalogRefreshSeconds = 0
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// CatalogRefreshInterval is zero when periodic refresh is disabled.
func (c Config) CatalogRefreshInterval() time.Duration {
	return time.Duration(c.CatalogRefreshSeconds) * time.Second
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
