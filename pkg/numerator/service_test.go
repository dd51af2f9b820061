package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/id"
	corenum "tally/internal/core/numerator"
	"tally/internal/core/tenant"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences keyed by (company_id, key).
// Strict calls pass (company, key); cached calls pass (company, key, increment).
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	key := args[0].(id.ID).String() + ":" + args[1].(string)
	increment := int64(1)
	if len(args) == 3 {
		increment = args[2].(int64)
	}
	m.values[key] += increment
	return &mockRow{val: m.values[key]}
}

func companyCtx(companyID id.ID) context.Context {
	return tenant.WithCompany(context.Background(), companyID)
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := companyCtx(id.New())
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := corenum.DefaultConfig("SINV")

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "SINV-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "SINV-2026-00002", num)
}

func TestGetNextNumber_SequencesArePerCompany(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := corenum.DefaultConfig("PINV")

	a, err := svc.GetNextNumber(companyCtx(id.New()), cfg, nil, period)
	require.NoError(t, err)
	b, err := svc.GetNextNumber(companyCtx(id.New()), cfg, nil, period)
	require.NoError(t, err)

	assert.Equal(t, "PINV-2026-00001", a)
	assert.Equal(t, "PINV-2026-00001", b)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := companyCtx(id.New())
	period := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	cfg := corenum.DefaultConfig("ORD")
	opts := &corenum.Options{Strategy: corenum.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00001", num)
	assert.Equal(t, 1, q.calls)

	for i := 0; i < 9; i++ {
		_, err := svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, q.calls, "range of 10 must be served from memory")

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00011", num)
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_RequiresCompany(t *testing.T) {
	svc := New(newMockQuerier())
	_, err := svc.GetNextNumber(context.Background(), corenum.DefaultConfig("X"), nil, time.Now())
	assert.Error(t, err)
}

func TestConfig_KeyAndFormat(t *testing.T) {
	period := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)

	cfg := corenum.DefaultConfig("SINV")
	assert.Equal(t, "SINV_2026", cfg.Key(period))
	assert.Equal(t, "SINV-2026-00042", cfg.Format(period, 42))

	cfg.ResetPeriod = "month"
	cfg.IncludeYear = false
	cfg.PadWidth = 3
	assert.Equal(t, "SINV_2026_07", cfg.Key(period))
	assert.Equal(t, "SINV-007", cfg.Format(period, 7))
}
