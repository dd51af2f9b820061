package catalog_repo

import (
	"context"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/products"
	"tally/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

// ProductRepo implements products.Repository.
type ProductRepo struct {
	*BaseRepo[*products.Product]
}

var _ products.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseRepo: NewBaseRepo(txm, productsTable, "product",
			postgres.ExtractDBColumns[products.Product](),
			func() *products.Product { return new(products.Product) },
		).Guard("quantity"),
	}
}

// SetQuantity writes the stock level. Callers hold the row lock taken by
// GetForUpdate.
func (r *ProductRepo) SetQuantity(ctx context.Context, companyID, productID id.ID, qty types.Quantity) error {
	return r.SetColumn(ctx, companyID, productID, "quantity", qty)
}
