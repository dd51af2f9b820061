package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	corenum "tally/internal/core/numerator"
	"tally/internal/core/tenant"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/events"
	"tally/internal/domain/registers/ledger"
)

func seedAccount(t *testing.T, s *Store, companyID id.ID) *accounts.Account {
	t.Helper()
	a := accounts.NewAccount(companyID, "Till", accounts.TypeCash)
	require.NoError(t, s.Accounts().Create(context.Background(), a))
	return a
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	companyID := id.New()
	a := seedAccount(t, s, companyID)
	boom := errors.New("boom")

	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Accounts().AdjustBalance(ctx, companyID, a.ID, types.MustMoney("10")))
		require.NoError(t, s.Outbox().Publish(ctx, events.Event{EventType: "X"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := s.Accounts().LockBalance(ctx, companyID, a.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	assert.Empty(t, s.Outbox().Events())
}

func TestTxManager_RollsBackOnPanic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	companyID := id.New()
	a := seedAccount(t, s, companyID)

	assert.Panics(t, func() {
		_ = s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
			_ = s.Accounts().AdjustBalance(ctx, companyID, a.ID, types.MustMoney("10"))
			panic("boom")
		})
	})

	bal, err := s.Accounts().LockBalance(ctx, companyID, a.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestTxManager_NestedCallsShareTransaction(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	companyID := id.New()
	a := seedAccount(t, s, companyID)
	txm := s.TxManager()

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, txm.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.Accounts().AdjustBalance(ctx, companyID, a.ID, types.MustMoney("5"))
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	bal, _ := s.Accounts().LockBalance(ctx, companyID, a.ID)
	assert.True(t, bal.IsZero(), "inner writes roll back with the outer transaction")
}

func TestTxManager_ReadOnlyDiscardsWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	companyID := id.New()
	a := seedAccount(t, s, companyID)

	err := s.TxManager().ReadOnly(ctx, func(ctx context.Context) error {
		return s.Accounts().AdjustBalance(ctx, companyID, a.ID, types.MustMoney("5"))
	})
	require.NoError(t, err)

	bal, _ := s.Accounts().LockBalance(ctx, companyID, a.ID)
	assert.True(t, bal.IsZero())
}

func TestAccountRepo_OptimisticLock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	companyID := id.New()
	a := seedAccount(t, s, companyID)

	first, err := s.Accounts().GetForUpdate(ctx, companyID, a.ID)
	require.NoError(t, err)
	stale := *first

	first.Name = "Main till"
	require.NoError(t, s.Accounts().Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	stale.Name = "Other"
	err = s.Accounts().Update(ctx, &stale)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestRepos_ScopeByCompany(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	companyID := id.New()
	a := seedAccount(t, s, companyID)

	_, err := s.Accounts().GetByID(ctx, id.New(), a.ID)
	assert.True(t, apperror.IsNotFound(err))

	e := ledger.NewEntry(companyID, ledger.KindIncome, types.MustMoney("1"), "")
	e.TargetAccountID = id.Ptr(a.ID)
	require.NoError(t, s.Ledger().Append(ctx, []ledger.Entry{e}))

	list, err := s.Ledger().ListForAccount(ctx, id.New(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	companies, err := s.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []id.ID{companyID}, companies)
}

func TestNumerator_PerCompanySequences(t *testing.T) {
	s := NewStore()
	n := s.Numerator()
	c1 := tenant.WithCompany(context.Background(), id.New())
	c2 := tenant.WithCompany(context.Background(), id.New())
	cfg := corenum.DefaultConfig("SINV")
	fixedPeriod := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	first, err := n.GetNextNumber(c1, cfg, nil, fixedPeriod)
	require.NoError(t, err)
	second, err := n.GetNextNumber(c1, cfg, nil, fixedPeriod)
	require.NoError(t, err)
	other, err := n.GetNextNumber(c2, cfg, nil, fixedPeriod)
	require.NoError(t, err)

	assert.Equal(t, "SINV-2026-00001", first)
	assert.Equal(t, "SINV-2026-00002", second)
	assert.Equal(t, "SINV-2026-00001", other)

	_, err = n.GetNextNumber(context.Background(), cfg, nil, fixedPeriod)
	assert.Error(t, err)
}
