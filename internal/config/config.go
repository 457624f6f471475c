package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DatabaseURL    string
	Port           string
	RedisURL       string   // optional; enables the path query cache
	AllowedOrigins []string // CORS origins for the journey API
	CacheMaxSizeMB int
	CacheTTL       time.Duration
	PathCacheTTL   time.Duration
	DefaultSteps   int
	FunnelWindow   int // minutes
	SessionTTL     time.Duration
}

// Load loads configuration from multiple sources with priority:
// 1. Command flags (set via LoadWithOverrides)
// 2. Config file (./pathflow.toml or $XDG_CONFIG_HOME/pathflow/pathflow.toml)
// 3. Environment variables
func Load() (*Config, error) {
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, "", "", ""), nil
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(databaseURL, port, redisURL string) (*Config, error) {
	v := newBaseViper()
	_ = v.ReadInConfig()
	return buildConfig(v, databaseURL, port, redisURL), nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("pathflow")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "pathflow"))
	}

	return v
}

func buildConfig(v *viper.Viper, overrideDatabaseURL, overridePort, overrideRedisURL string) *Config {
	cfg := &Config{
		Port:           "3000",
		AllowedOrigins: []string{},
		CacheMaxSizeMB: intOr(v, "cache.max_size_mb", 32),
		CacheTTL:       time.Duration(intOr(v, "cache.ttl_seconds", 60)) * time.Second,
		PathCacheTTL:   time.Duration(intOr(v, "cache.path_ttl_seconds", 300)) * time.Second,
		DefaultSteps:   intOr(v, "journey.default_steps", 5),
		FunnelWindow:   intOr(v, "funnel.window_minutes", 60),
		SessionTTL:     time.Duration(intOr(v, "session.ttl_minutes", 30)) * time.Minute,
	}

	// Apply config file values
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("redis_url") {
		cfg.RedisURL = v.GetString("redis_url")
	}
	if v.IsSet("allowed_origins") {
		cfg.AllowedOrigins = parseAllowedOrigins(v.GetString("allowed_origins"))
	}

	// Environment fallback (only if not configured)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if !v.IsSet("allowed_origins") {
		if envOrigins := os.Getenv("ALLOWED_ORIGINS"); envOrigins != "" {
			cfg.AllowedOrigins = parseAllowedOrigins(envOrigins)
		}
	}
	if !v.IsSet("funnel.window_minutes") {
		if envWindow, err := strconv.Atoi(os.Getenv("FUNNEL_WINDOW_MINUTES")); err == nil && envWindow > 0 {
			cfg.FunnelWindow = envWindow
		}
	}

	// Apply overrides (flags) last
	if overrideDatabaseURL != "" {
		cfg.DatabaseURL = overrideDatabaseURL
	}
	if overridePort != "" {
		cfg.Port = overridePort
	}
	if overrideRedisURL != "" {
		cfg.RedisURL = overrideRedisURL
	}

	return cfg
}

func intOr(v *viper.Viper, key string, fallback int) int {
	if v.IsSet(key) {
		if n := v.GetInt(key); n > 0 {
			return n
		}
	}
	return fallback
}

// parseAllowedOrigins parses a comma-separated list, dropping invalid entries
func parseAllowedOrigins(originsStr string) []string {
	if originsStr == "" {
		return []string{}
	}

	parts := strings.Split(originsStr, ",")
	origins := make([]string, 0, len(parts))

	for _, part := range parts {
		origin, err := NormalizeOrigin(part)
		if err != nil {
			continue
		}
		origins = append(origins, origin)
	}

	return origins
}
