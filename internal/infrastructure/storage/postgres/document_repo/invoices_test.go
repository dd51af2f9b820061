package document_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/id"
	"tally/internal/domain/documents/invoices"
)

func TestApplyInvoiceFilter(t *testing.T) {
	sale := invoices.TypeSale
	partnerID := id.New()
	due := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   invoices.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filter",
			wantSQL: "SELECT id FROM invoices",
		},
		{
			name:     "type and partner",
			filter:   invoices.ListFilter{Type: &sale, PartnerID: &partnerID},
			wantSQL:  "SELECT id FROM invoices WHERE type = $1 AND partner_id = $2",
			wantArgs: []any{sale, partnerID.String()},
		},
		{
			name:     "unpaid and due",
			filter:   invoices.ListFilter{Unpaid: true, DueBefore: &due},
			wantSQL:  "SELECT id FROM invoices WHERE due_date <= $1 AND status = $2 AND total_amount > paid_amount",
			wantArgs: []any{due, invoices.StatusApproved},
		},
		{
			name:     "search number or notes",
			filter:   invoices.ListFilter{Search: "0042"},
			wantSQL:  "SELECT id FROM invoices WHERE (number ILIKE $1 OR notes ILIKE $2)",
			wantArgs: []any{"%0042%", "%0042%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select("id").From(invoicesTable)
			sql, args, err := applyInvoiceFilter(base, tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestDocumentColumns(t *testing.T) {
	assert.NotContains(t, invoiceColumns, "lines")
	assert.Contains(t, invoiceColumns, "invoice_date")
	assert.Equal(t, []string{"invoice_id", "company_id"}, lineInsertColumns[:2])
	assert.Contains(t, lineColumns, "discount4")

	assert.NotContains(t, saleColumns, "items")
	assert.Equal(t, "sale_id", itemInsertColumns[0])
	assert.Len(t, itemInsertColumns, len(itemColumns)+2)
}
