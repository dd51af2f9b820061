// Package register_repo provides PostgreSQL implementations for the ledger
// entry and stock movement registers.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tally/internal/core/id"
	"tally/internal/domain/registers/stock"
	"tally/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "stock_movements"

var movementColumns = postgres.ExtractDBColumns[stock.Movement]()

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) txManager(ctx context.Context) *postgres.TxManager {
	return postgres.ResolveTxManager(ctx, r.txm)
}

// CreateMovements batch inserts movements.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for i := range movements {
		rows = append(rows, postgres.Values(&movements[i], movementColumns))
	}

	// Fast path: COPY when inside a transaction.
	txm := r.txManager(ctx)
	_, err := postgres.NewBatchInserter(txm).CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows)
	if err == nil {
		return nil
	}
	if !errors.Is(err, postgres.ErrNoTransaction) {
		return fmt.Errorf("copy movements: %w", err)
	}

	q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// GetMovementsByInvoice retrieves the movements recorded for an invoice.
func (r *StockRepo) GetMovementsByInvoice(ctx context.Context, companyID, invoiceID id.ID) ([]stock.Movement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"company_id": companyID, "invoice_id": invoiceID}).
		OrderBy("occurred_at", "id")
	return r.selectMovements(ctx, q)
}

// DeleteMovementsByInvoice removes the invoice's movements.
func (r *StockRepo) DeleteMovementsByInvoice(ctx context.Context, companyID, invoiceID id.ID) error {
	sql, args, err := r.builder.Delete(stockMovementsTable).
		Where(squirrel.Eq{"company_id": companyID, "invoice_id": invoiceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txManager(ctx).GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}
	return nil
}

// GetMovementHistory returns movement history for a product, newest first.
func (r *StockRepo) GetMovementHistory(ctx context.Context, companyID, productID id.ID, filter stock.MovementFilter) ([]stock.Movement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"company_id": companyID, "product_id": productID})

	if filter.Direction != nil {
		q = q.Where(squirrel.Eq{"direction": *filter.Direction})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"occurred_at": *filter.ToDate})
	}

	q = q.OrderBy("occurred_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return r.selectMovements(ctx, q)
}

func (r *StockRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]stock.Movement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []stock.Movement
	if err := pgxscan.Select(ctx, r.txManager(ctx).GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}
