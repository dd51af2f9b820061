package products

import (
	"context"

	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, companyID, productID id.ID) (*Product, error)

	// GetForUpdate retrieves the product with a row lock. Stock checks
	// must hold this lock until the quantity is written.
	GetForUpdate(ctx context.Context, companyID, productID id.ID) (*Product, error)

	SetQuantity(ctx context.Context, companyID, productID id.ID, qty types.Quantity) error
}
