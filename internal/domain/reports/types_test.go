package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodStart(t *testing.T) {
	// Thursday
	ts := time.Date(2026, 3, 12, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), PeriodStart(ts, GroupByDay))
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), PeriodStart(ts, GroupByWeek))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), PeriodStart(ts, GroupByMonth))

	sunday := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), PeriodStart(sunday, GroupByWeek))
}

func TestParseGroupBy(t *testing.T) {
	g, err := ParseGroupBy("")
	require.NoError(t, err)
	assert.Equal(t, GroupByMonth, g)

	g, err = ParseGroupBy("week")
	require.NoError(t, err)
	assert.Equal(t, GroupByWeek, g)

	_, err = ParseGroupBy("year")
	assert.Error(t, err)
}
