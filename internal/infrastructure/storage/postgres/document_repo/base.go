// Package document_repo provides PostgreSQL implementations for the invoice
// and point-of-sale repositories. Headers and their table parts are stored
// in separate tables.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/infrastructure/storage/postgres"
)

const pgUniqueViolation = "23505"

// BaseDocumentRepo provides company-scoped header operations.
type BaseDocumentRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](txm *postgres.TxManager, tableName, entityName string, selectCols []string, newFn func() T) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseDocumentRepo[T]) txManager(ctx context.Context) *postgres.TxManager {
	return postgres.ResolveTxManager(ctx, r.txm)
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager(ctx).GetQuerier(ctx)
}

// Create inserts the header.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	sql, args, err := r.Builder().
		Insert(r.tableName).
		Columns(r.selectCols...).
		Values(postgres.Values(entity, r.selectCols)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewConflict(r.entityName + " already exists").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes the header with optimistic locking and returns the new
// version and timestamp.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, entity T) (int, time.Time, error) {
	data := postgres.StructToMap(entity)
	version, ok := data["version"].(int)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	now := time.Now().UTC()
	set := make(map[string]any, len(r.selectCols))
	for _, col := range postgres.Without(r.selectCols, "id", "company_id", "version", "created_at", "updated_at") {
		set[col] = data[col]
	}
	set["updated_at"] = now

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": data["id"], "company_id": data["company_id"], "version": version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("build update: %w", err)
	}

	var newVersion int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&newVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, time.Time{}, apperror.NewConcurrentModification(r.entityName, data["id"])
		}
		return 0, time.Time{}, fmt.Errorf("update %s: %w", r.tableName, err)
	}
	return newVersion, now, nil
}

// Delete removes the header; table parts go with it (ON DELETE CASCADE).
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, companyID, entityID id.ID) error {
	sql, args, err := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID, "company_id": companyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect(companyID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{"company_id": companyID})
}

// GetByID retrieves the header.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, companyID, entityID id.ID) (T, error) {
	return r.get(ctx, r.baseSelect(companyID).Where(squirrel.Eq{"id": entityID}), entityID)
}

// GetForUpdate retrieves the header with a row lock.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, companyID, entityID id.ID) (T, error) {
	return r.get(ctx, r.baseSelect(companyID).Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID)
}

func (r *BaseDocumentRepo[T]) get(ctx context.Context, q squirrel.SelectBuilder, entityID id.ID) (T, error) {
	entity := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, entityID)
		}
		return entity, fmt.Errorf("get %s: %w", r.entityName, err)
	}
	return entity, nil
}

// count returns the number of rows q would return.
func (r *BaseDocumentRepo[T]) count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// selectAll runs q and scans every row into dst.
func (r *BaseDocumentRepo[T]) selectAll(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return nil
}

// replaceRows deletes the table part of a document and inserts rows in one
// round-trip.
func (r *BaseDocumentRepo[T]) replaceRows(ctx context.Context, table, fk string, companyID, docID id.ID, columns []string, rows [][]any) error {
	del, delArgs, err := r.Builder().Delete(table).
		Where(squirrel.Eq{fk: docID, "company_id": companyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s: %w", table, err)
	}
	queries := []postgres.BatchQuery{{SQL: del, Args: delArgs}}

	for _, row := range rows {
		ins, insArgs, err := r.Builder().Insert(table).Columns(columns...).Values(row...).ToSql()
		if err != nil {
			return fmt.Errorf("build insert %s: %w", table, err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: ins, Args: insArgs})
	}

	txm := r.txManager(ctx)
	err = postgres.NewBatchExecutor(txm).ExecuteBatch(ctx, queries)
	if !errors.Is(err, postgres.ErrNoTransaction) {
		return err
	}
	// outside a unit of work: run one by one
	for _, q := range queries {
		if _, err := txm.GetQuerier(ctx).Exec(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("write %s: %w", table, err)
		}
	}
	return nil
}
