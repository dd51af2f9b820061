package register_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/id"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/registers/ledger"
)

func TestApplyEntryFilter(t *testing.T) {
	accountID := id.New()
	kind := ledger.KindExpense
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   ledger.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "live only by default",
			filter:   ledger.ListFilter{},
			wantSQL:  "SELECT id FROM ledger_entries WHERE cancelled = $1",
			wantArgs: []any{false},
		},
		{
			name:     "include cancelled",
			filter:   ledger.ListFilter{IncludeCancelled: true, Kind: &kind},
			wantSQL:  "SELECT id FROM ledger_entries WHERE kind = $1",
			wantArgs: []any{kind},
		},
		{
			name:     "account matches either side",
			filter:   ledger.ListFilter{IncludeCancelled: true, AccountID: &accountID},
			wantSQL:  "SELECT id FROM ledger_entries WHERE (source_account_id = $1 OR target_account_id = $2)",
			wantArgs: []any{accountID.String(), accountID.String()},
		},
		{
			name:     "manual entries from a date",
			filter:   ledger.ListFilter{IncludeCancelled: true, ManualOnly: true, From: &from},
			wantSQL:  "SELECT id FROM ledger_entries WHERE occurred_at >= $1 AND invoice_id IS NULL AND sale_id IS NULL",
			wantArgs: []any{from},
		},
		{
			name:     "search",
			filter:   ledger.ListFilter{IncludeCancelled: true, Search: "rent"},
			wantSQL:  "SELECT id FROM ledger_entries WHERE description ILIKE $1",
			wantArgs: []any{"%rent%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select("id").From(ledgerTable)
			sql, args, err := applyEntryFilter(base, tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestPartnerRef(t *testing.T) {
	partnerID := id.New()

	sql, args, err := partnerRef(partners.SupplierRef(partnerID)).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "supplier_id = ?", sql)
	assert.Equal(t, []any{partnerID.String()}, args)

	sql, _, err = partnerRef(partners.CustomerRef(partnerID)).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "customer_id = ?", sql)
}

func TestEntryColumnsExcludeImmutableFromUpdate(t *testing.T) {
	assert.Contains(t, entryColumns, "company_id")
	assert.NotContains(t, entryMutable, "id")
	assert.NotContains(t, entryMutable, "company_id")
	assert.NotContains(t, entryMutable, "version")
	assert.Contains(t, entryMutable, "amount")
	assert.Contains(t, entryMutable, "cancelled")
}
