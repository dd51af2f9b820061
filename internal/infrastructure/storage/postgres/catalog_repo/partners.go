package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/infrastructure/storage/postgres"
)

const partnersTable = "partners"

// PartnerRepo implements partners.Repository. Customers and suppliers share
// one table keyed by id; every lookup also matches the kind.
type PartnerRepo struct {
	base *BaseRepo[*partners.Partner]
}

var _ partners.Repository = (*PartnerRepo)(nil)

// NewPartnerRepo creates a new partner repository.
func NewPartnerRepo(txm *postgres.TxManager) *PartnerRepo {
	return &PartnerRepo{
		base: NewBaseRepo(txm, partnersTable, "partner",
			postgres.ExtractDBColumns[partners.Partner](),
			func() *partners.Partner { return new(partners.Partner) },
		).Guard("balance"),
	}
}

func kindIs(ref partners.Ref) squirrel.Sqlizer {
	return squirrel.Eq{"kind": ref.Kind}
}

func (r *PartnerRepo) Create(ctx context.Context, p *partners.Partner) error {
	return r.base.Create(ctx, p)
}

func (r *PartnerRepo) GetByID(ctx context.Context, companyID id.ID, ref partners.Ref) (*partners.Partner, error) {
	q := r.base.baseSelect(companyID).Where(squirrel.Eq{"id": ref.ID}).Where(kindIs(ref)).Limit(1)
	return r.base.FindOne(ctx, q, ref.ID)
}

func (r *PartnerRepo) GetForUpdate(ctx context.Context, companyID id.ID, ref partners.Ref) (*partners.Partner, error) {
	q := r.base.baseSelect(companyID).Where(squirrel.Eq{"id": ref.ID}).Where(kindIs(ref)).Suffix("FOR UPDATE")
	return r.base.FindOne(ctx, q, ref.ID)
}

// FindByEmail matches the email case-insensitively.
func (r *PartnerRepo) FindByEmail(ctx context.Context, companyID id.ID, kind partners.Kind, email string) (*partners.Partner, error) {
	q := r.base.baseSelect(companyID).
		Where(squirrel.Eq{"kind": kind}).
		Where(squirrel.Expr("lower(email) = lower(?)", email)).
		OrderBy("id").
		Limit(1)
	return r.base.FindOne(ctx, q, email)
}

func (r *PartnerRepo) Delete(ctx context.Context, companyID id.ID, ref partners.Ref) error {
	return r.base.Delete(ctx, companyID, ref.ID, kindIs(ref))
}

func (r *PartnerRepo) AdjustBalance(ctx context.Context, companyID id.ID, ref partners.Ref, delta types.Money) error {
	return r.base.AddMoney(ctx, companyID, ref.ID, "balance", delta, kindIs(ref))
}

func (r *PartnerRepo) SetBalance(ctx context.Context, companyID id.ID, ref partners.Ref, balance types.Money) error {
	return r.base.SetColumn(ctx, companyID, ref.ID, "balance", balance, kindIs(ref))
}

func (r *PartnerRepo) LockBalance(ctx context.Context, companyID id.ID, ref partners.Ref) (types.Money, error) {
	return r.base.LockMoney(ctx, companyID, ref.ID, "balance", kindIs(ref))
}

// ListRefs returns customers first, then suppliers, each ordered by id.
func (r *PartnerRepo) ListRefs(ctx context.Context, companyID id.ID) ([]partners.Ref, error) {
	sql, args, err := r.base.Builder().
		Select("kind", "id").
		From(partnersTable).
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("kind", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		Kind partners.Kind `db:"kind"`
		ID   id.ID         `db:"id"`
	}
	if err := pgxscan.Select(ctx, r.base.Querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list partner refs: %w", err)
	}

	refs := make([]partners.Ref, len(rows))
	for i, row := range rows {
		refs[i] = partners.Ref{Kind: row.Kind, ID: row.ID}
	}
	return refs, nil
}
