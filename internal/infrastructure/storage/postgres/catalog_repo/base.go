// Package catalog_repo provides PostgreSQL implementations for the account,
// partner and product repositories.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/infrastructure/storage/postgres"
)

// pgForeignKeyViolation is the SQLSTATE raised when a referenced row is deleted.
const pgForeignKeyViolation = "23503"

// BaseRepo provides company-scoped CRUD for entities embedding
// entity.BaseEntity. Every statement filters by company_id.
type BaseRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	// cached columns written by dedicated methods, never by Update
	guarded []string
	newFn   func() T
}

// NewBaseRepo creates a new base repository.
func NewBaseRepo[T any](
	txm *postgres.TxManager,
	tableName, entityName string,
	selectCols []string,
	newFn func() T,
) *BaseRepo[T] {
	return &BaseRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Guard excludes cols from Update.
func (r *BaseRepo[T]) Guard(cols ...string) *BaseRepo[T] {
	r.guarded = append(r.guarded, cols...)
	return r
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the active transaction or the pool.
func (r *BaseRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return postgres.ResolveTxManager(ctx, r.txm).GetQuerier(ctx)
}

func (r *BaseRepo[T]) baseSelect(companyID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{"company_id": companyID})
}

// Create inserts a new entity using its "db" tags.
func (r *BaseRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes every unguarded column with optimistic locking and returns
// the new version.
func (r *BaseRepo[T]) Update(ctx context.Context, entity T) (int, error) {
	data := postgres.StructToMap(entity)
	entityID, ok := data["id"]
	if !ok {
		return 0, fmt.Errorf("entity has no 'id' field with db tag")
	}
	version, ok := data["version"].(int)
	if !ok {
		return 0, fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	skip := append([]string{"id", "company_id", "version", "created_at"}, r.guarded...)
	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range postgres.Without(r.selectCols, skip...) {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID, "company_id": data["company_id"], "version": version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	var newVersion int
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&newVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewConcurrentModification(r.entityName, entityID)
		}
		return 0, fmt.Errorf("update %s: %w", r.tableName, err)
	}
	return newVersion, nil
}

// GetByID retrieves an entity of the company.
func (r *BaseRepo[T]) GetByID(ctx context.Context, companyID, entityID id.ID) (T, error) {
	return r.get(ctx, r.baseSelect(companyID).Where(squirrel.Eq{"id": entityID}).Limit(1), entityID)
}

// GetForUpdate retrieves an entity with a row lock.
func (r *BaseRepo[T]) GetForUpdate(ctx context.Context, companyID, entityID id.ID) (T, error) {
	return r.get(ctx, r.baseSelect(companyID).Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID)
}

// FindOne executes q and returns a single entity; key names it in NotFound.
func (r *BaseRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	return r.get(ctx, q, key)
}

func (r *BaseRepo[T]) get(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	entity := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, fmt.Errorf("get %s: %w", r.entityName, err)
	}
	return entity, nil
}

// Select runs q and scans every row.
func (r *BaseRepo[T]) Select(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []T
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return items, nil
}

// ListIDs returns the ids of every entity of the company, ordered by id.
func (r *BaseRepo[T]) ListIDs(ctx context.Context, companyID id.ID) ([]id.ID, error) {
	sql, args, err := r.Builder().
		Select("id").
		From(r.tableName).
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []id.ID
	if err := pgxscan.Select(ctx, r.Querier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s ids: %w", r.tableName, err)
	}
	return ids, nil
}

// Delete performs physical removal. A row still referenced elsewhere is a Conflict.
func (r *BaseRepo[T]) Delete(ctx context.Context, companyID, entityID id.ID, extra ...squirrel.Sqlizer) error {
	q := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID, "company_id": companyID})
	for _, cond := range extra {
		q = q.Where(cond)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return apperror.NewConflict(r.entityName+" is referenced by other records").
				WithDetail("id", entityID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}

// AddMoney adds delta to a money column, rounding to 2 places.
func (r *BaseRepo[T]) AddMoney(ctx context.Context, companyID, entityID id.ID, col string, delta types.Money, extra ...squirrel.Sqlizer) error {
	return r.setColumn(ctx, companyID, entityID, col, squirrel.Expr("ROUND("+col+" + ?, 2)", delta), extra...)
}

// SetColumn overwrites one cached column.
func (r *BaseRepo[T]) SetColumn(ctx context.Context, companyID, entityID id.ID, col string, value any, extra ...squirrel.Sqlizer) error {
	return r.setColumn(ctx, companyID, entityID, col, value, extra...)
}

func (r *BaseRepo[T]) setColumn(ctx context.Context, companyID, entityID id.ID, col string, value any, extra ...squirrel.Sqlizer) error {
	q := r.Builder().
		Update(r.tableName).
		Set(col, value).
		Where(squirrel.Eq{"id": entityID, "company_id": companyID})
	for _, cond := range extra {
		q = q.Where(cond)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update %s: %w", col, err)
	}
	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", r.tableName, col, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}

// LockMoney locks the row and returns a money column.
func (r *BaseRepo[T]) LockMoney(ctx context.Context, companyID, entityID id.ID, col string, extra ...squirrel.Sqlizer) (types.Money, error) {
	q := r.Builder().
		Select(col).
		From(r.tableName).
		Where(squirrel.Eq{"id": entityID, "company_id": companyID})
	for _, cond := range extra {
		q = q.Where(cond)
	}

	sql, args, err := q.Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build lock: %w", err)
	}
	var value types.Money
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Zero(), apperror.NewNotFound(r.entityName, entityID)
		}
		return types.Zero(), fmt.Errorf("lock %s: %w", r.tableName, err)
	}
	return value, nil
}
