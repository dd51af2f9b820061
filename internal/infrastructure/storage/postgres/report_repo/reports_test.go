package report_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/id"
	"tally/internal/domain/reports"
)

func TestCashFlowQuery(t *testing.T) {
	b := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	companyID := id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	t.Run("weekly buckets", func(t *testing.T) {
		sql, args, err := cashFlowQuery(b, companyID, reports.CashFlowFilter{
			From: from, To: to, GroupBy: reports.GroupByWeek,
		}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "date_trunc('week', occurred_at AT TIME ZONE 'UTC')")
		assert.Contains(t, sql, "FILTER (WHERE kind = 'income')")
		assert.Contains(t, sql, "occurred_at >= $")
		assert.Contains(t, sql, "occurred_at < $")
		assert.Contains(t, sql, "GROUP BY 1 ORDER BY 1")
		assert.Contains(t, args, from)
		assert.Contains(t, args, to)
	})

	t.Run("unknown grouping falls back to month", func(t *testing.T) {
		sql, _, err := cashFlowQuery(b, companyID, reports.CashFlowFilter{From: from, To: to}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "date_trunc('month'")
		assert.NotContains(t, sql, "source_account_id")
	})

	t.Run("account on either side", func(t *testing.T) {
		accountID := id.New()
		sql, args, err := cashFlowQuery(b, companyID, reports.CashFlowFilter{
			From: from, To: to, GroupBy: reports.GroupByDay, AccountID: &accountID,
		}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "(source_account_id = $")
		assert.Contains(t, args, accountID.String())
	})
}
