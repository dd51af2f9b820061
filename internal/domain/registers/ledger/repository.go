package ledger

import (
	"context"
	"strings"
	"time"

	"tally/internal/core/id"
	"tally/internal/domain/catalogs/partners"
)

// Repository defines operations for the ledger entry register.
// Every method is scoped by companyID.
type Repository interface {
	// Append inserts new entries (used during posting).
	Append(ctx context.Context, entries []Entry) error

	GetByID(ctx context.Context, companyID, entryID id.ID) (*Entry, error)

	// GetForUpdate returns the entry with a row lock.
	GetForUpdate(ctx context.Context, companyID, entryID id.ID) (*Entry, error)

	// Update modifies an entry with optimistic locking.
	Update(ctx context.Context, e *Entry) error

	// CancelByInvoice marks every live entry of the invoice cancelled and
	// returns them.
	CancelByInvoice(ctx context.Context, companyID, invoiceID id.ID, at time.Time, actor string) ([]Entry, error)

	// CancelBySale marks every live entry of the sale cancelled and returns them.
	CancelBySale(ctx context.Context, companyID, saleID id.ID, at time.Time, actor string) ([]Entry, error)

	// Cancel marks the given entries cancelled.
	Cancel(ctx context.Context, companyID id.ID, entryIDs []id.ID, at time.Time, actor string) error

	// ListForAccount returns live entries that reference the account.
	ListForAccount(ctx context.Context, companyID, accountID id.ID) ([]Entry, error)

	// ListForPartner returns live entries that reference the partner.
	ListForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) ([]Entry, error)

	// HasLiveForAccount reports whether any live entry references the account.
	HasLiveForAccount(ctx context.Context, companyID, accountID id.ID) (bool, error)

	// HasLiveForPartner reports whether any live entry references the partner.
	HasLiveForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) (bool, error)

	List(ctx context.Context, companyID id.ID, filter ListFilter) ([]Entry, error)
}

// ListFilter for entry listings.
type ListFilter struct {
	AccountID        *id.ID
	Kind             *Kind
	From             *time.Time
	To               *time.Time
	Search           string
	ManualOnly       bool
	IncludeCancelled bool
	Limit            int
	Offset           int
}

// Matches reports whether e passes the filter. Stores without a query
// language apply it directly.
func (f ListFilter) Matches(e *Entry) bool {
	if e.Cancelled && !f.IncludeCancelled {
		return false
	}
	if f.AccountID != nil && !id.Equal(e.SourceAccountID, *f.AccountID) && !id.Equal(e.TargetAccountID, *f.AccountID) {
		return false
	}
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.OccurredAt.Before(*f.To) {
		return false
	}
	if f.ManualOnly && !e.IsManual() {
		return false
	}
	if f.Search != "" && !containsFold(e.Description, f.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
