package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/domain/catalogs/products"
	"tally/pkg/logger"
)

// Recorder applies stock movements. Callers run it inside their unit of
// work; it never opens a transaction itself.
type Recorder struct {
	repo     Repository
	products products.Repository
}

// NewRecorder creates a stock movement recorder.
func NewRecorder(repo Repository, products products.Repository) *Recorder {
	return &Recorder{
		repo:     repo,
		products: products,
	}
}

// Apply locks each product and writes the new quantity plus a movement.
// Availability of outgoing requests is checked only for products that track
// stock; an untracked product may go negative. Requests marked TrackedOnly
// skip untracked products entirely. Products are locked in id order.
func (r *Recorder) Apply(ctx context.Context, companyID id.ID, requests []Request) ([]Movement, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	for i, req := range requests {
		if err := req.Validate(i); err != nil {
			return nil, err
		}
	}

	ordered := make([]Request, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return id.Less(ordered[i].ProductID, ordered[j].ProductID)
	})

	now := time.Now().UTC()
	movements := make([]Movement, 0, len(ordered))
	for _, req := range ordered {
		p, err := r.products.GetForUpdate(ctx, companyID, req.ProductID)
		if err != nil {
			return nil, fmt.Errorf("lock product %s: %w", req.ProductID, err)
		}
		if !p.TrackStock && req.TrackedOnly {
			continue
		}

		newQty := p.Quantity + req.Quantity
		if req.Direction == DirectionOut {
			if p.TrackStock && p.Quantity < req.Quantity {
				return nil, apperror.NewInsufficientStock(
					p.ID.String(), p.Name,
					req.Quantity.String(), p.Quantity.String(),
				)
			}
			newQty = p.Quantity - req.Quantity
		}

		if err := r.products.SetQuantity(ctx, companyID, p.ID, newQty); err != nil {
			return nil, fmt.Errorf("set quantity for %s: %w", p.ID, err)
		}

		movements = append(movements, Movement{
			ID:         id.New(),
			CompanyID:  companyID,
			ProductID:  p.ID,
			Direction:  req.Direction,
			Quantity:   req.Quantity,
			InvoiceID:  req.InvoiceID,
			SaleID:     req.SaleID,
			Reason:     req.Reason,
			OccurredAt: now,
		})
	}

	if len(movements) == 0 {
		return nil, nil
	}
	if err := r.repo.CreateMovements(ctx, movements); err != nil {
		return nil, fmt.Errorf("create movements: %w", err)
	}

	logger.Debug(ctx, "recorded stock movements", "count", len(movements))
	return movements, nil
}

// RevertInvoice applies the inverse of every movement recorded for the
// invoice and deletes them. Fails when a tracked product would go negative.
// Untracked products are reverted without the check.
func (r *Recorder) RevertInvoice(ctx context.Context, companyID, invoiceID id.ID) error {
	movements, err := r.repo.GetMovementsByInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return fmt.Errorf("get movements: %w", err)
	}
	if len(movements) == 0 {
		return nil
	}

	sort.SliceStable(movements, func(i, j int) bool {
		return id.Less(movements[i].ProductID, movements[j].ProductID)
	})

	for _, m := range movements {
		p, err := r.products.GetForUpdate(ctx, companyID, m.ProductID)
		if err != nil {
			return fmt.Errorf("lock product %s: %w", m.ProductID, err)
		}
		newQty := p.Quantity - m.Signed()
		if p.TrackStock && newQty.IsNegative() {
			return apperror.NewInsufficientStock(
				p.ID.String(), p.Name,
				m.Quantity.String(), p.Quantity.String(),
			).WithDetail("invoiceId", invoiceID)
		}
		if err := r.products.SetQuantity(ctx, companyID, p.ID, newQty); err != nil {
			return fmt.Errorf("set quantity for %s: %w", p.ID, err)
		}
	}

	if err := r.repo.DeleteMovementsByInvoice(ctx, companyID, invoiceID); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}

	logger.Info(ctx, "reverted stock movements",
		"invoice_id", invoiceID,
		"count", len(movements),
	)
	return nil
}

// History returns the movement history of a product.
func (r *Recorder) History(ctx context.Context, companyID, productID id.ID, filter MovementFilter) ([]Movement, error) {
	return r.repo.GetMovementHistory(ctx, companyID, productID, filter)
}
