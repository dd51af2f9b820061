package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"tally/internal/core/id"
	"tally/internal/domain/documents/pos"
	"tally/internal/infrastructure/storage/postgres"
)

const (
	salesTable     = "pos_sales"
	saleItemsTable = "pos_sale_items"
)

var (
	saleColumns       = postgres.ExtractDBColumns[pos.Sale]()
	itemColumns       = postgres.ExtractDBColumns[pos.Item]()
	itemInsertColumns = append([]string{"sale_id", "company_id"}, itemColumns...)
)

// SaleRepo implements pos.Repository. Items are written once with the sale.
type SaleRepo struct {
	*BaseDocumentRepo[*pos.Sale]
}

var _ pos.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txm, salesTable, "sale", saleColumns,
			func() *pos.Sale { return &pos.Sale{} }),
	}
}

// Create stores the sale and its items.
func (r *SaleRepo) Create(ctx context.Context, s *pos.Sale) error {
	if err := r.BaseDocumentRepo.Create(ctx, s); err != nil {
		return err
	}
	rows := make([][]any, 0, len(s.Items))
	for i := range s.Items {
		rows = append(rows, append([]any{s.ID, s.CompanyID}, postgres.Values(&s.Items[i], itemColumns)...))
	}
	return r.replaceRows(ctx, saleItemsTable, "sale_id", s.CompanyID, s.ID, itemInsertColumns, rows)
}

func (r *SaleRepo) GetByID(ctx context.Context, companyID, saleID id.ID) (*pos.Sale, error) {
	s, err := r.BaseDocumentRepo.GetByID(ctx, companyID, saleID)
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, s)
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, companyID, saleID id.ID) (*pos.Sale, error) {
	s, err := r.BaseDocumentRepo.GetForUpdate(ctx, companyID, saleID)
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, s)
}

func (r *SaleRepo) withItems(ctx context.Context, s *pos.Sale) (*pos.Sale, error) {
	q := r.Builder().
		Select(itemColumns...).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": s.ID, "company_id": s.CompanyID}).
		OrderBy("line_no")
	if err := r.selectAll(ctx, &s.Items, q); err != nil {
		return nil, err
	}
	return s, nil
}

// Update modifies the header; items are immutable once recorded.
func (r *SaleRepo) Update(ctx context.Context, s *pos.Sale) error {
	version, at, err := r.BaseDocumentRepo.Update(ctx, s)
	if err != nil {
		return err
	}
	s.SetVersion(version)
	s.UpdatedAt = at
	return nil
}

// ListRecent returns live sales, newest first.
func (r *SaleRepo) ListRecent(ctx context.Context, companyID id.ID, limit int) ([]*pos.Sale, error) {
	q := r.baseSelect(companyID).
		Where(squirrel.Eq{"cancelled": false}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	var out []*pos.Sale
	if err := r.selectAll(ctx, &out, q); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]id.ID, len(out))
	byID := make(map[id.ID]*pos.Sale, len(out))
	for i, s := range out {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	var rows []struct {
		SaleID id.ID `db:"sale_id"`
		pos.Item
	}
	itemsQ := r.Builder().
		Select(append([]string{"sale_id"}, itemColumns...)...).
		From(saleItemsTable).
		Where(squirrel.Eq{"company_id": companyID, "sale_id": ids}).
		OrderBy("sale_id", "line_no")
	if err := r.selectAll(ctx, &rows, itemsQ); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if s, ok := byID[row.SaleID]; ok {
			s.Items = append(s.Items, row.Item)
		}
	}
	return out, nil
}
