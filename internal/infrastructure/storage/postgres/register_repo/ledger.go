package register_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/registers/ledger"
	"tally/internal/infrastructure/storage/postgres"
)

const ledgerTable = "ledger_entries"

var (
	entryColumns = postgres.ExtractDBColumns[ledger.Entry]()
	// columns rewritten by Update
	entryMutable = postgres.Without(entryColumns, "id", "company_id", "version", "created_at")
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger register repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) querier(ctx context.Context) postgres.Querier {
	return postgres.ResolveTxManager(ctx, r.txm).GetQuerier(ctx)
}

// Append inserts new entries. Inside a unit of work it uses COPY.
func (r *LedgerRepo) Append(ctx context.Context, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(entries))
	for i := range entries {
		rows = append(rows, postgres.Values(&entries[i], entryColumns))
	}

	txm := postgres.ResolveTxManager(ctx, r.txm)
	_, err := postgres.NewBatchInserter(txm).CopyFromSlice(ctx, ledgerTable, entryColumns, rows)
	if err == nil {
		return nil
	}
	if !errors.Is(err, postgres.ErrNoTransaction) {
		return fmt.Errorf("copy entries: %w", err)
	}

	q := r.builder.Insert(ledgerTable).Columns(entryColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}
	return nil
}

func (r *LedgerRepo) baseSelect(companyID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(entryColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"company_id": companyID})
}

func (r *LedgerRepo) GetByID(ctx context.Context, companyID, entryID id.ID) (*ledger.Entry, error) {
	return r.getOne(ctx, r.baseSelect(companyID).Where(squirrel.Eq{"id": entryID}), entryID)
}

func (r *LedgerRepo) GetForUpdate(ctx context.Context, companyID, entryID id.ID) (*ledger.Entry, error) {
	return r.getOne(ctx, r.baseSelect(companyID).Where(squirrel.Eq{"id": entryID}).Suffix("FOR UPDATE"), entryID)
}

func (r *LedgerRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, entryID id.ID) (*ledger.Entry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var e ledger.Entry
	if err := pgxscan.Get(ctx, r.querier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("entry", entryID)
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

// Update rewrites the entry with optimistic locking.
func (r *LedgerRepo) Update(ctx context.Context, e *ledger.Entry) error {
	e.UpdatedAt = time.Now().UTC()
	data := postgres.StructToMap(e)
	set := make(map[string]any, len(entryMutable))
	for _, col := range entryMutable {
		set[col] = data[col]
	}

	sql, args, err := r.builder.Update(ledgerTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.ID, "company_id": e.CompanyID, "version": e.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var version int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewConcurrentModification("entry", e.ID)
		}
		return fmt.Errorf("update entry: %w", err)
	}
	e.SetVersion(version)
	return nil
}

// cancelWhere marks matching live entries cancelled and returns them in
// their cancelled form.
func (r *LedgerRepo) cancelWhere(ctx context.Context, companyID id.ID, at time.Time, actor string, cond squirrel.Sqlizer) ([]ledger.Entry, error) {
	sql, args, err := r.builder.Update(ledgerTable).
		Set("cancelled", true).
		Set("cancelled_at", at).
		Set("cancelled_by", actor).
		Set("updated_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"company_id": companyID, "cancelled": false}).
		Where(cond).
		Suffix("RETURNING " + strings.Join(entryColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cancel: %w", err)
	}

	var out []ledger.Entry
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("cancel entries: %w", err)
	}
	return out, nil
}

func (r *LedgerRepo) CancelByInvoice(ctx context.Context, companyID, invoiceID id.ID, at time.Time, actor string) ([]ledger.Entry, error) {
	return r.cancelWhere(ctx, companyID, at, actor, squirrel.Eq{"invoice_id": invoiceID})
}

func (r *LedgerRepo) CancelBySale(ctx context.Context, companyID, saleID id.ID, at time.Time, actor string) ([]ledger.Entry, error) {
	return r.cancelWhere(ctx, companyID, at, actor, squirrel.Eq{"sale_id": saleID})
}

func (r *LedgerRepo) Cancel(ctx context.Context, companyID id.ID, entryIDs []id.ID, at time.Time, actor string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := r.cancelWhere(ctx, companyID, at, actor, squirrel.Eq{"id": entryIDs})
	return err
}

func accountRef(accountID id.ID) squirrel.Sqlizer {
	return squirrel.Or{
		squirrel.Eq{"source_account_id": accountID},
		squirrel.Eq{"target_account_id": accountID},
	}
}

func partnerRef(ref partners.Ref) squirrel.Sqlizer {
	if ref.Kind == partners.KindSupplier {
		return squirrel.Eq{"supplier_id": ref.ID}
	}
	return squirrel.Eq{"customer_id": ref.ID}
}

func (r *LedgerRepo) live(ctx context.Context, companyID id.ID, cond squirrel.Sqlizer) ([]ledger.Entry, error) {
	sql, args, err := r.baseSelect(companyID).
		Where(squirrel.Eq{"cancelled": false}).
		Where(cond).
		OrderBy("occurred_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []ledger.Entry
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	return out, nil
}

func (r *LedgerRepo) ListForAccount(ctx context.Context, companyID, accountID id.ID) ([]ledger.Entry, error) {
	return r.live(ctx, companyID, accountRef(accountID))
}

func (r *LedgerRepo) ListForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) ([]ledger.Entry, error) {
	return r.live(ctx, companyID, partnerRef(ref))
}

func (r *LedgerRepo) hasLive(ctx context.Context, companyID id.ID, cond squirrel.Sqlizer) (bool, error) {
	sub := r.builder.Select("1").
		From(ledgerTable).
		Where(squirrel.Eq{"company_id": companyID, "cancelled": false}).
		Where(cond)
	sql, args, err := r.builder.Select().Column(squirrel.Expr("EXISTS (?)", sub)).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists entries: %w", err)
	}
	return exists, nil
}

func (r *LedgerRepo) HasLiveForAccount(ctx context.Context, companyID, accountID id.ID) (bool, error) {
	return r.hasLive(ctx, companyID, accountRef(accountID))
}

func (r *LedgerRepo) HasLiveForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) (bool, error) {
	return r.hasLive(ctx, companyID, partnerRef(ref))
}

// List returns entries newest first.
func (r *LedgerRepo) List(ctx context.Context, companyID id.ID, filter ledger.ListFilter) ([]ledger.Entry, error) {
	q := applyEntryFilter(r.baseSelect(companyID), filter).OrderBy("occurred_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []ledger.Entry
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// applyEntryFilter mirrors ledger.ListFilter.Matches in SQL.
func applyEntryFilter(q squirrel.SelectBuilder, f ledger.ListFilter) squirrel.SelectBuilder {
	if !f.IncludeCancelled {
		q = q.Where(squirrel.Eq{"cancelled": false})
	}
	if f.AccountID != nil {
		q = q.Where(accountRef(*f.AccountID))
	}
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *f.Kind})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"occurred_at": *f.To})
	}
	if f.ManualOnly {
		q = q.Where(squirrel.Eq{"invoice_id": nil, "sale_id": nil})
	}
	if f.Search != "" {
		q = q.Where(squirrel.ILike{"description": "%" + f.Search + "%"})
	}
	return q
}
