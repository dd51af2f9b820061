// Package stock provides the stock movement register and its recorder,
// the sole mutator of product quantity.
package stock

import (
	"context"
	"fmt"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Direction of a movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Movement is a write-once record of a quantity change.
type Movement struct {
	ID         id.ID          `db:"id" json:"id"`
	CompanyID  id.ID          `db:"company_id" json:"companyId"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	Direction  Direction      `db:"direction" json:"direction"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	InvoiceID  *id.ID         `db:"invoice_id" json:"invoiceId,omitempty"`
	SaleID     *id.ID         `db:"sale_id" json:"saleId,omitempty"`
	Reason     string         `db:"reason" json:"reason,omitempty"`
	OccurredAt time.Time      `db:"occurred_at" json:"occurredAt"`
}

// Signed returns the quantity change applied to the product.
func (m Movement) Signed() types.Quantity {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Request asks the recorder to move stock.
type Request struct {
	ProductID id.ID
	Direction Direction
	Quantity  types.Quantity
	InvoiceID *id.ID
	SaleID    *id.ID
	Reason    string

	// TrackedOnly skips products that do not track stock instead of moving them.
	TrackedOnly bool
}

// Validate checks a single request.
func (r Request) Validate(i int) error {
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation(fmt.Sprintf("movement %d: product is required", i))
	}
	if r.Direction != DirectionIn && r.Direction != DirectionOut {
		return apperror.NewValidation(fmt.Sprintf("movement %d: invalid direction", i)).
			WithDetail("direction", r.Direction)
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
	}
	return nil
}

// Repository defines operations for the stock register.
type Repository interface {
	// CreateMovements batch inserts movements (used during posting).
	CreateMovements(ctx context.Context, movements []Movement) error

	// GetMovementsByInvoice retrieves all movements recorded for an invoice.
	GetMovementsByInvoice(ctx context.Context, companyID, invoiceID id.ID) ([]Movement, error)

	// DeleteMovementsByInvoice removes the invoice's movements (invoice reversal).
	DeleteMovementsByInvoice(ctx context.Context, companyID, invoiceID id.ID) error

	// GetMovementHistory returns movement history for a product, newest first.
	GetMovementHistory(ctx context.Context, companyID, productID id.ID, filter MovementFilter) ([]Movement, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Direction *Direction
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}
