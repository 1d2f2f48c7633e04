// Package config loads process configuration from the environment.
//
// A .env file in the working directory is read first, when present.
// Variables already set in the environment win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/pos-engine/pos"
)

// Config holds application configuration values. It is read once at
// startup and never changes afterwards.
type Config struct {
	HTTPPort       int
	DBPath         string
	LogLevel       string
	RequestTimeout time.Duration
	CatalogPath    string
	Discount       pos.DiscountConfig
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:       8080,
		DBPath:         "pos.db",
		LogLevel:       "info",
		RequestTimeout: 15 * time.Second,
		Discount:       pos.DefaultDiscountConfig(),
	}
}

// Load reads .env (if any) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, falling back to Defaults for every
// unset variable.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Defaults()

	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid HTTP_PORT value %q", v)
		}
		cfg.HTTPPort = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid REQUEST_TIMEOUT value %q", v)
		}
		cfg.RequestTimeout = d
	}
	cfg.CatalogPath = getenv("CATALOG_PATH")

	var err error
	if cfg.Discount.AmountThreshold, err = decimalVar(getenv, "DISCOUNT_AMOUNT_THRESHOLD", cfg.Discount.AmountThreshold); err != nil {
		return Config{}, err
	}
	if cfg.Discount.AmountThresholdPercentage, err = decimalVar(getenv, "DISCOUNT_AMOUNT_THRESHOLD_PCT", cfg.Discount.AmountThresholdPercentage); err != nil {
		return Config{}, err
	}
	if cfg.Discount.EligiblePercentage, err = decimalVar(getenv, "DISCOUNT_ELIGIBLE_PCT", cfg.Discount.EligiblePercentage); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden after FromEnv.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL value %q", c.LogLevel)
	}
	if err := c.Discount.Validate(); err != nil {
		return fmt.Errorf("discount configuration: %w", err)
	}
	return nil
}

// Logger builds the process logger: JSON in production, console output when
// the level is debug.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func decimalVar(getenv func(string) string, name string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	return d, nil
}
