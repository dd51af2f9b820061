package partners

import (
	"context"

	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Repository is the customer/supplier collaborator.
// Every method is scoped by companyID; a partner of another company is NotFound.
type Repository interface {
	Create(ctx context.Context, p *Partner) error
	GetByID(ctx context.Context, companyID id.ID, ref Ref) (*Partner, error)
	GetForUpdate(ctx context.Context, companyID id.ID, ref Ref) (*Partner, error)
	FindByEmail(ctx context.Context, companyID id.ID, kind Kind, email string) (*Partner, error)
	Delete(ctx context.Context, companyID id.ID, ref Ref) error

	// AdjustBalance adds delta to the cached balance.
	AdjustBalance(ctx context.Context, companyID id.ID, ref Ref, delta types.Money) error
	// SetBalance overwrites the cached balance (reconciliation).
	SetBalance(ctx context.Context, companyID id.ID, ref Ref, balance types.Money) error
	// LockBalance locks the partner row and returns its cached balance.
	LockBalance(ctx context.Context, companyID id.ID, ref Ref) (types.Money, error)

	ListRefs(ctx context.Context, companyID id.ID) ([]Ref, error)
}
