package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/security"
	"tally/internal/core/types"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := kv[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Development())
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.Equal(t, 4, cfg.ReconcileConcurrency)
	assert.True(t, cfg.BalanceTolerance.Equal(types.MustMoney("0.001")))
	assert.Equal(t, security.DefaultCreditExpression, cfg.CreditRule)
	assert.Equal(t, security.CreditModeBlock, cfg.CreditMode)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5*time.Second, cfg.OutboxPollInterval)

	assert.Error(t, cfg.RequireDatabase())

	rule, err := cfg.Credit()
	require.NoError(t, err)
	assert.Equal(t, security.CreditModeBlock, rule.Mode())
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(env(map[string]string{
		"DATABASE_URL":          "postgres://localhost/tally",
		"LOG_LEVEL":             "DEBUG",
		"APP_ENV":               "production",
		"RECONCILE_INTERVAL":    "15m",
		"RECONCILE_CONCURRENCY": "8",
		"BALANCE_TOLERANCE":     "0.01",
		"CREDIT_MODE":           "warn",
		"OUTBOX_BATCH_SIZE":     "10",
		"OUTBOX_POLL_INTERVAL":  "1s",
		"DB_MAX_CONNS":          "5",
	}))
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireDatabase())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Development())
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 8, cfg.ReconcileConcurrency)
	assert.True(t, cfg.BalanceTolerance.Equal(types.MustMoney("0.01")))
	assert.Equal(t, security.CreditModeWarn, cfg.CreditMode)
	assert.Equal(t, 10, cfg.OutboxBatchSize)
	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, int32(5), cfg.DBMaxConns)
}

func TestFromLookup_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"RECONCILE_INTERVAL": "soon"}, "RECONCILE_INTERVAL"},
		{"bad integer", map[string]string{"OUTBOX_BATCH_SIZE": "ten"}, "OUTBOX_BATCH_SIZE"},
		{"bad money", map[string]string{"BALANCE_TOLERANCE": "abc"}, "BALANCE_TOLERANCE"},
		{"negative tolerance", map[string]string{"BALANCE_TOLERANCE": "-1"}, "BALANCE_TOLERANCE"},
		{"zero concurrency", map[string]string{"RECONCILE_CONCURRENCY": "0"}, "RECONCILE_CONCURRENCY"},
		{"unknown credit mode", map[string]string{"CREDIT_MODE": "ignore"}, "CREDIT_MODE"},
		{"unknown log level", map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
