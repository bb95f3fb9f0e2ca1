package config

import (
	"fmt"
	"strings"
	"time"

	"proforma/pkg/money"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	GinMode         string
	DefaultCurrency string
	JWTSecret       string
	CORSOrigins     []string
	Database        DatabaseConfig
	Redis           RedisConfig
	Log             LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

// DSN builds the postgres connection string
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// RedisConfig enables the cross-instance target lock when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configs/.env (if present) and then the environment.
// Environment variables win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{"configs/.env"}
	}
	// godotenv never overrides variables already set in the environment
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("DEFAULT_CURRENCY", "AED")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")

	cfg := &Config{
		Port:      v.GetString("PORT"),
		GinMode:   v.GetString("GIN_MODE"),
		JWTSecret: v.GetString("JWT_SECRET"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  v.GetDuration("LOCK_TTL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	for _, origin := range strings.Split(v.GetString("CORS_ALLOW_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	currency, err := money.NormalizeCurrency(v.GetString("DEFAULT_CURRENCY"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_CURRENCY: %w", err)
	}
	cfg.DefaultCurrency = currency

	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return nil, fmt.Errorf("JWT_SECRET is required in release mode")
		}
		cfg.JWTSecret = "default_super_secret_key" // development fallback only
	}

	return cfg, nil
}
