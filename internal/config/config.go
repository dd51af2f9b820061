// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/core/security"
	"tally/internal/core/types"
)

// Config holds the settings shared by the worker and ledgerctl.
type Config struct {
	DatabaseURL string
	DBMaxConns  int32

	LogLevel string
	AppEnv   string

	ReconcileInterval    time.Duration
	ReconcileConcurrency int
	BalanceTolerance     types.Money

	CreditRule string
	CreditMode security.CreditMode

	OutboxBatchSize    int
	OutboxPollInterval time.Duration
}

// Development reports whether the process runs in a development environment.
func (c *Config) Development() bool { return c.AppEnv == "development" }

// Credit compiles the configured credit-limit rule.
func (c *Config) Credit() (*security.CreditRule, error) {
	return security.NewCreditRule(c.CreditRule, c.CreditMode)
}

// RequireDatabase fails unless DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Load reads the environment, seeded from .env when that file exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which reports whether a key is set.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	p := parser{lookup: lookup}
	cfg := &Config{
		DatabaseURL:          p.str("DATABASE_URL", ""),
		DBMaxConns:           int32(p.integer("DB_MAX_CONNS", 25)),
		LogLevel:             strings.ToLower(p.str("LOG_LEVEL", "info")),
		AppEnv:               p.str("APP_ENV", "development"),
		ReconcileInterval:    p.duration("RECONCILE_INTERVAL", time.Hour),
		ReconcileConcurrency: p.integer("RECONCILE_CONCURRENCY", 4),
		BalanceTolerance:     p.money("BALANCE_TOLERANCE", "0.001"),
		CreditRule:           p.str("CREDIT_RULE", security.DefaultCreditExpression),
		CreditMode:           security.CreditMode(strings.ToLower(p.str("CREDIT_MODE", string(security.CreditModeBlock)))),
		OutboxBatchSize:      p.integer("OUTBOX_BATCH_SIZE", 100),
		OutboxPollInterval:   p.duration("OUTBOX_POLL_INTERVAL", 5*time.Second),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if c.ReconcileConcurrency <= 0 {
		return fmt.Errorf("RECONCILE_CONCURRENCY must be positive")
	}
	if c.BalanceTolerance.IsNegative() {
		return fmt.Errorf("BALANCE_TOLERANCE cannot be negative")
	}
	if c.CreditMode != security.CreditModeBlock && c.CreditMode != security.CreditModeWarn {
		return fmt.Errorf("CREDIT_MODE must be block or warn, got %q", c.CreditMode)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	return nil
}

// parser keeps the first conversion error.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) money(key, def string) types.Money {
	m, err := types.NewMoneyFromString(p.str(key, def))
	if err != nil {
		p.fail(key, p.str(key, def), err)
		return types.MustMoney(def)
	}
	return m
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
}
