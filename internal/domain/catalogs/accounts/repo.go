package accounts

import (
	"context"

	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Repository defines the interface for Account persistence.
// Balance is written only through AdjustBalance and SetBalance.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, companyID, accountID id.ID) (*Account, error)

	// GetForUpdate retrieves the account with a row lock.
	GetForUpdate(ctx context.Context, companyID, accountID id.ID) (*Account, error)

	// Update writes descriptive fields with optimistic locking.
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, companyID, accountID id.ID) error

	AdjustBalance(ctx context.Context, companyID, accountID id.ID, delta types.Money) error
	SetBalance(ctx context.Context, companyID, accountID id.ID, balance types.Money) error
	LockBalance(ctx context.Context, companyID, accountID id.ID) (types.Money, error)

	ListIDs(ctx context.Context, companyID id.ID) ([]id.ID, error)
	List(ctx context.Context, companyID id.ID) ([]*Account, error)
}
