package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	applog "bulkmart/internal/log"
)

type Config struct {
	Port         string
	DBDSN        string
	LogFile      string
	TemplatesDir string

	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration
	// ReferenceTTL bounds how long categories, discounts, flash offers and
	// credit periods are served from memory before a refetch.
	ReferenceTTL time.Duration

	JWTSecret string
}

func setOrNot(s string) string {
	if s != "" {
		return "SET"
	}
	return "NOT SET"
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DSN", "bulkmart.db") // sqlite file in project root
	v.SetDefault("LOG_FILE", "./bulkmart.log")
	v.SetDefault("TEMPLATES_DIR", "./web/templates")
	v.SetDefault("BACKEND_URL", "http://localhost:9000")
	v.SetDefault("BACKEND_API_KEY", "")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("REFERENCE_TTL", "2m")
	v.SetDefault("JWT_SECRET", "")

	cfg := Config{
		Port:           v.GetString("PORT"),
		DBDSN:          v.GetString("DB_DSN"),
		LogFile:        v.GetString("LOG_FILE"),
		TemplatesDir:   v.GetString("TEMPLATES_DIR"),
		BackendURL:     v.GetString("BACKEND_URL"),
		BackendAPIKey:  v.GetString("BACKEND_API_KEY"),
		BackendTimeout: v.GetDuration("BACKEND_TIMEOUT"),
		ReferenceTTL:   v.GetDuration("REFERENCE_TTL"),
		JWTSecret:      v.GetString("JWT_SECRET"),
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = 10 * time.Second
	}
	if cfg.ReferenceTTL < 0 {
		cfg.ReferenceTTL = 0
	}

	applog.Info(nil, "config.load", map[string]any{
		"port":            cfg.Port,
		"db_dsn":          cfg.DBDSN,
		"log_file":        cfg.LogFile,
		"templates_dir":   cfg.TemplatesDir,
		"backend_url":     cfg.BackendURL,
		"backend_api_key": setOrNot(cfg.BackendAPIKey),
		"backend_timeout": cfg.BackendTimeout.String(),
		"reference_ttl":   cfg.ReferenceTTL.String(),
		"jwt_secret":      setOrNot(cfg.JWTSecret),
	})
	return cfg
}
