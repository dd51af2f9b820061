package reports

import (
	"context"
	"time"

	"tally/internal/core/id"
)

// Repository defines report data access interface.
type Repository interface {
	// CashFlow sums live income, expense and transfer entries per period.
	CashFlow(ctx context.Context, companyID id.ID, filter CashFlowFilter) ([]CashFlowPeriod, error)

	// InvoiceStats counts invoices (canceled excluded) by type and status.
	InvoiceStats(ctx context.Context, companyID id.ID) (*InvoiceStats, error)

	// DueBefore returns approved invoices with a remaining amount due on or before until.
	DueBefore(ctx context.Context, companyID id.ID, until time.Time) ([]DueInvoice, error)
}
