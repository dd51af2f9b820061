// Package products holds the product catalog. Product quantity is mutated
// only by the stock movement recorder.
package products

import (
	"context"
	"strings"

	"tally/internal/core/apperror"
	"tally/internal/core/entity"
	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Product is a stocked or non-stocked item.
type Product struct {
	entity.BaseEntity

	Name          string         `db:"name" json:"name"`
	SKU           string         `db:"sku" json:"sku,omitempty"`
	Unit          string         `db:"unit" json:"unit,omitempty"`
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	TrackStock    bool           `db:"track_stock" json:"trackStock"`
	SalePrice     types.Money    `db:"sale_price" json:"salePrice"`
	PurchasePrice types.Money    `db:"purchase_price" json:"purchasePrice"`
	VATRate       types.Money    `db:"vat_rate" json:"vatRate"`
}

// NewProduct creates a stock-tracked product with zero quantity.
func NewProduct(companyID id.ID, name, sku string, salePrice types.Money) *Product {
	return &Product{
		BaseEntity: entity.NewBaseEntity(companyID),
		Name:       name,
		SKU:        sku,
		Unit:       "pcs",
		TrackStock: true,
		SalePrice:  salePrice,
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.ValidateBase(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.Quantity.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").WithDetail("field", "quantity")
	}
	if p.SalePrice.IsNegative() || p.PurchasePrice.IsNegative() {
		return apperror.NewValidation("prices cannot be negative")
	}
	return nil
}
