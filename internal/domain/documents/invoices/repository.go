package invoices

import (
	"context"
	"strings"
	"time"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain"
	"tally/internal/domain/catalogs/partners"
)

// Repository defines operations for invoices. Every method is scoped by companyID.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, companyID, invoiceID id.ID) (*Invoice, error)
	// GetForUpdate retrieves the invoice header with a row lock.
	GetForUpdate(ctx context.Context, companyID, invoiceID id.ID) (*Invoice, error)
	// Update writes the header with optimistic locking.
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, companyID, invoiceID id.ID) error

	GetLines(ctx context.Context, companyID, invoiceID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, companyID, invoiceID id.ID, lines []Line) error

	List(ctx context.Context, companyID id.ID, filter ListFilter) (domain.ListResult[*Invoice], error)

	// SumOpenTotals sums totals of approved and paid invoices of the partner.
	SumOpenTotals(ctx context.Context, companyID id.ID, ref partners.Ref) (types.Money, error)
	// ExistsForPartner reports whether any invoice references the partner.
	ExistsForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) (bool, error)
}

// ListFilter for filtering invoices.
type ListFilter struct {
	Type      *Type
	Status    *Status
	PartnerID *id.ID
	Search    string
	DueBefore *time.Time
	Unpaid    bool
	domain.Page
}

// Matches reports whether inv passes the filter. Stores without a query
// language apply it directly.
func (f ListFilter) Matches(inv *Invoice) bool {
	if f.Type != nil && inv.Type != *f.Type {
		return false
	}
	if f.Status != nil && inv.Status != *f.Status {
		return false
	}
	if f.PartnerID != nil && inv.PartnerID != *f.PartnerID {
		return false
	}
	if f.DueBefore != nil && (inv.DueDate == nil || inv.DueDate.After(*f.DueBefore)) {
		return false
	}
	if f.Unpaid && (inv.Status != StatusApproved || !inv.Remaining().IsPositive()) {
		return false
	}
	if f.Search != "" && !containsFold(inv.Number, f.Search) && !containsFold(inv.Notes, f.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
