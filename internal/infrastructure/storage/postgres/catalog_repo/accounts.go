package catalog_repo

import (
	"context"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/infrastructure/storage/postgres"
)

const accountsTable = "accounts"

// AccountRepo implements accounts.Repository.
type AccountRepo struct {
	*BaseRepo[*accounts.Account]
}

var _ accounts.Repository = (*AccountRepo)(nil)

// NewAccountRepo creates a new account repository.
func NewAccountRepo(txm *postgres.TxManager) *AccountRepo {
	return &AccountRepo{
		BaseRepo: NewBaseRepo(txm, accountsTable, "account",
			postgres.ExtractDBColumns[accounts.Account](),
			func() *accounts.Account { return new(accounts.Account) },
		).Guard("balance"),
	}
}

// Update writes descriptive fields; the cached balance is left untouched.
func (r *AccountRepo) Update(ctx context.Context, a *accounts.Account) error {
	version, err := r.BaseRepo.Update(ctx, a)
	if err != nil {
		return err
	}
	a.SetVersion(version)
	return nil
}

func (r *AccountRepo) AdjustBalance(ctx context.Context, companyID, accountID id.ID, delta types.Money) error {
	return r.AddMoney(ctx, companyID, accountID, "balance", delta)
}

func (r *AccountRepo) SetBalance(ctx context.Context, companyID, accountID id.ID, balance types.Money) error {
	return r.SetColumn(ctx, companyID, accountID, "balance", balance)
}

func (r *AccountRepo) LockBalance(ctx context.Context, companyID, accountID id.ID) (types.Money, error) {
	return r.LockMoney(ctx, companyID, accountID, "balance")
}

// List returns the company's accounts ordered by name.
func (r *AccountRepo) List(ctx context.Context, companyID id.ID) ([]*accounts.Account, error) {
	return r.Select(ctx, r.baseSelect(companyID).OrderBy("name", "id"))
}

func (r *AccountRepo) Delete(ctx context.Context, companyID, accountID id.ID) error {
	return r.BaseRepo.Delete(ctx, companyID, accountID)
}
