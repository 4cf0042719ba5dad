// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type Config struct {
	DatabaseURL    string
	ServerAddr     string
	LoanPeriod     time.Duration
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	AutoMigrate    bool
	OTLPEndpoint   string
	MaxOpenConns   int
	MaxIdleConns   int
}

// Load builds a Config from environment variables, applying defaults for everything
// except DATABASE_URL.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getenv("DATABASE_URL"),
		ServerAddr:   getenv("SERVER_ADDR"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if _, err := pgx.ParseConfig(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("DATABASE_URL: %w", err)
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}

	days, err := intVar(getenv, "LOAN_PERIOD_DAYS", 14)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("LOAN_PERIOD_DAYS: must be positive, got %d", days)
	}
	cfg.LoanPeriod = time.Duration(days) * 24 * time.Hour

	cfg.AllowedOrigins = []string{"*"}
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = cfg.AllowedOrigins[:0]
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("RATE_LIMIT_RPS: invalid value %q", v)
		}
		cfg.RateLimitRPS = rps
	}
	if cfg.RateLimitBurst, err = intVar(getenv, "RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: must be positive when rate limiting is on, got %d", cfg.RateLimitBurst)
	}

	if v := getenv("AUTO_MIGRATE"); v != "" {
		if cfg.AutoMigrate, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("AUTO_MIGRATE: %w", err)
		}
	}

	if cfg.MaxOpenConns, err = intVar(getenv, "DB_MAX_OPEN_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns, err = intVar(getenv, "DB_MAX_IDLE_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS: must not be negative, got %d and %d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	return cfg, nil
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
