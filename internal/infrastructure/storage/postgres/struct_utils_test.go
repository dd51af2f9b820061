package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/registers/ledger"
)

func TestExtractDBColumns_Entry(t *testing.T) {
	cols := ExtractDBColumns[ledger.Entry]()

	for _, expected := range []string{
		"id", "company_id", "version", "created_at", "updated_at",
		"kind", "amount", "source_account_id", "target_account_id",
		"customer_id", "supplier_id", "invoice_id", "sale_id", "cancelled",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.Equal(t, "id", cols[0], "embedded base columns come first")
}

func TestStructToMap_Entry(t *testing.T) {
	companyID := id.New()
	accountID := id.New()
	e := ledger.NewEntry(companyID, ledger.KindIncome, types.MustMoney("12.50"), "rent")
	e.TargetAccountID = &accountID
	now := time.Now().UTC()
	e.CancelledAt = &now

	m := StructToMap(&e)

	assert.Equal(t, e.ID, m["id"])
	assert.Equal(t, companyID, m["company_id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, ledger.KindIncome, m["kind"])
	assert.Equal(t, &accountID, m["target_account_id"])
	assert.Equal(t, &now, m["cancelled_at"])
	assert.Equal(t, "rent", m["description"])
}

func TestWithoutAndValues(t *testing.T) {
	cols := Without([]string{"id", "version", "name", "balance"}, "version", "balance")
	assert.Equal(t, []string{"id", "name"}, cols)

	e := ledger.NewEntry(id.New(), ledger.KindExpense, types.MustMoney("3"), "fuel")
	vals := Values(e, []string{"kind", "description", "missing"})
	assert.Equal(t, []any{ledger.KindExpense, "fuel", nil}, vals)
}
