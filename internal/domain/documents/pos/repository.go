package pos

import (
	"context"

	"tally/internal/core/id"
)

// Repository defines persistence operations for sales. Items are stored and
// loaded with the sale.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, companyID, saleID id.ID) (*Sale, error)

	// GetForUpdate returns the sale with a row lock.
	GetForUpdate(ctx context.Context, companyID, saleID id.ID) (*Sale, error)

	// Update modifies the sale header with optimistic locking.
	Update(ctx context.Context, s *Sale) error

	// ListRecent returns live sales, newest first.
	ListRecent(ctx context.Context, companyID id.ID, limit int) ([]*Sale, error)
}
