// Package config loads the service configuration from the environment
// (optionally seeded from a .env file).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"indstream/internal/logger"
)

// Bar sources.
const (
	SourceRedis  = "redis"
	SourceWS     = "ws"
	SourceSQLite = "sqlite"
)

// DefaultIndicators is the subscription set used when INDICATORS is unset.
const DefaultIndicators = "sma:20,ema:20,rsi:14,macd:12:26:9,bb:20:2,atr:14"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string // "" (SQLITE_PATH=none) disables SQLite
	MetricsAddr   string
	HTTPAddr      string
	LogLevel      slog.Level

	// Input
	BarSource  string // redis | ws | sqlite
	WSURL      string
	Symbols    []string
	Timeframes []time.Duration // resampled streams derived from every symbol

	// Engine
	Indicators         string // name[:p1[:p2...]][@alias],...
	ConsumerGroup      string
	ConsumerName       string
	CheckpointInterval time.Duration
	RingSize           int     // rounded up to a power of two
	ReplaySpeed        float64 // sqlite source only; 0 = as fast as possible
}

// Load reads the configuration. A missing .env file is not an error; every
// invalid value is reported in one combined error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string
	var err error

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SQLitePath = getEnv("SQLITE_PATH", "data/indstream.db")
	if strings.EqualFold(cfg.SQLitePath, "none") {
		cfg.SQLitePath = ""
	}
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":9095")
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "info"))

	cfg.BarSource = strings.ToLower(getEnv("BAR_SOURCE", SourceRedis))
	cfg.WSURL = getEnv("WS_URL", "")
	cfg.Symbols = splitList(getEnv("SYMBOLS", ""))
	switch cfg.BarSource {
	case SourceRedis:
		if len(cfg.Symbols) == 0 {
			errs = append(errs, "SYMBOLS must be set for BAR_SOURCE=redis")
		}
	case SourceWS:
		if cfg.WSURL == "" {
			errs = append(errs, "WS_URL must be set for BAR_SOURCE=ws")
		}
	case SourceSQLite:
		if cfg.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH must be set for BAR_SOURCE=sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("BAR_SOURCE must be redis, ws or sqlite, got %q", cfg.BarSource))
	}

	if cfg.Timeframes, err = parseTimeframes(getEnv("TIMEFRAMES", "")); err != nil {
		errs = append(errs, err.Error())
	}

	cfg.Indicators = getEnv("INDICATORS", DefaultIndicators)
	cfg.ConsumerGroup = getEnv("CONSUMER_GROUP", "indstream")
	cfg.ConsumerName = getEnv("CONSUMER_NAME", "worker-"+uuid.NewString())

	secs, err := getEnvAsInt("CHECKPOINT_INTERVAL_SEC", 30)
	if err != nil {
		errs = append(errs, err.Error())
	} else if secs <= 0 {
		errs = append(errs, "CHECKPOINT_INTERVAL_SEC must be positive")
	}
	cfg.CheckpointInterval = time.Duration(secs) * time.Second

	if cfg.RingSize, err = getEnvAsInt("RING_SIZE", 4096); err != nil {
		errs = append(errs, err.Error())
	} else if cfg.RingSize < 2 {
		errs = append(errs, "RING_SIZE must be at least 2")
	}

	if cfg.ReplaySpeed, err = getEnvAsFloat("REPLAY_SPEED", 0); err != nil {
		errs = append(errs, err.Error())
	} else if cfg.ReplaySpeed < 0 {
		errs = append(errs, "REPLAY_SPEED cannot be negative")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTimeframes parses "5m,15m,1h". Each entry must be a positive whole
// number of seconds.
func parseTimeframes(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, p := range splitList(s) {
		d, err := time.ParseDuration(p)
		if err != nil || d <= 0 || d%time.Second != 0 {
			return nil, fmt.Errorf("invalid timeframe %q in TIMEFRAMES", p)
		}
		out = append(out, d)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("invalid integer value %q for %s", v, key)
	}
	return n, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid float value %q for %s", v, key)
	}
	return f, nil
}
