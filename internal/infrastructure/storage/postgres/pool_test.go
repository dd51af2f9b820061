package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/tally", "tally-worker", 10)
	assert.Equal(t, "tally-worker", cfg.AppName)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)

	cfg = DefaultPoolConfig("postgres://localhost/tally", "", 0)
	assert.Equal(t, "tally", cfg.AppName)
	assert.Equal(t, int32(25), cfg.MaxConns)

	cfg = DefaultPoolConfig("postgres://localhost/tally", "ledgerctl", 1)
	assert.Equal(t, int32(1), cfg.MinConns)
}
