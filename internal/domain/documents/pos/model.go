// Package pos records point-of-sale sales: cash sales into an account and
// credit sales against a customer's receivable.
package pos

import (
	"context"
	"fmt"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/entity"
	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Sale is a completed point-of-sale transaction.
type Sale struct {
	entity.BaseEntity

	Items       []Item      `db:"-" json:"items"`
	Total       types.Money `db:"total" json:"total"`
	Currency    string      `db:"currency" json:"currency"`
	OnCredit    bool        `db:"on_credit" json:"onCredit"`
	AccountID   *id.ID      `db:"account_id" json:"accountId,omitempty"`
	CustomerID  *id.ID      `db:"customer_id" json:"customerId,omitempty"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
	Cancelled   bool        `db:"cancelled" json:"cancelled"`
	CancelledAt *time.Time  `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy string      `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`
}

// Item is one sold product. Name and SKU are copied from the product at the
// time of sale.
type Item struct {
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Name      string         `db:"name" json:"name"`
	SKU       string         `db:"sku" json:"sku,omitempty"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Price     types.Money    `db:"price" json:"price"`
	Subtotal  types.Money    `db:"subtotal" json:"subtotal"`
}

// Calculate sets the item subtotal (quantity × price, rounded).
func (it *Item) Calculate() {
	it.Subtotal = types.RoundMoney(it.Quantity.Decimal().Mul(it.Price))
}

// ItemInput is one requested line. A nil Price means the product's sale price.
type ItemInput struct {
	ProductID id.ID
	Quantity  types.Quantity
	Price     *types.Money
}

// Input describes a sale to record.
type Input struct {
	Items      []ItemInput
	OnCredit   bool
	AccountID  *id.ID
	CustomerID *id.ID
	Notes      string
	Currency   string
}

// Validate checks the input before any product lookup.
func (in Input) Validate() error {
	if len(in.Items) == 0 {
		return apperror.NewValidation("sale must have at least one item").WithDetail("field", "items")
	}
	for i, it := range in.Items {
		if id.IsNil(it.ProductID) {
			return apperror.NewValidation(fmt.Sprintf("item %d: product is required", i+1))
		}
		if !it.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("item %d: quantity must be positive", i+1))
		}
		if it.Price != nil && it.Price.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("item %d: price cannot be negative", i+1))
		}
	}
	if in.OnCredit {
		if in.CustomerID == nil {
			return apperror.NewValidation("credit sale requires a customer").WithDetail("field", "customerId")
		}
		return nil
	}
	if in.AccountID == nil {
		return apperror.NewValidation("cash sale requires an account").WithDetail("field", "accountId")
	}
	return nil
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if err := s.ValidateBase(); err != nil {
		return err
	}
	if len(s.Items) == 0 {
		return apperror.NewValidation("sale must have at least one item")
	}
	if s.Total.IsNegative() {
		return apperror.NewValidation("total cannot be negative")
	}
	return nil
}

// RecalculateTotal sums item subtotals.
func (s *Sale) RecalculateTotal() {
	total := types.Zero()
	for i := range s.Items {
		s.Items[i].LineNo = i + 1
		s.Items[i].Calculate()
		total = total.Add(s.Items[i].Subtotal)
	}
	s.Total = total
}
