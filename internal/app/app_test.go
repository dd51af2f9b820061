package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/app"
	"tally/internal/core/apperror"
	appctx "tally/internal/core/context"
	"tally/internal/core/id"
	"tally/internal/core/security"
	"tally/internal/core/tenant"
	"tally/internal/core/types"
	"tally/internal/domain/audit"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/catalogs/products"
	"tally/internal/domain/documents/invoices"
	"tally/internal/domain/documents/pos"
	"tally/internal/domain/documents/transactions"
	"tally/internal/domain/events"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/reports"
	"tally/internal/infrastructure/storage/memory"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	company id.ID
	store   *memory.Store
	svc     *app.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	company := id.New()
	ctx := tenant.WithCompany(context.Background(), company)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "clerk"})
	return &fixture{
		t:       t,
		ctx:     ctx,
		company: company,
		store:   store,
		svc: app.New(store.Repositories(), app.Options{
			Credit: security.MustCreditRule("", security.CreditModeBlock),
		}),
	}
}

func (f *fixture) admin() context.Context {
	return appctx.WithUser(f.ctx, &appctx.UserContext{UserID: "boss", IsAdmin: true})
}

func (f *fixture) product(qty int64, price string) *products.Product {
	f.t.Helper()
	p := products.NewProduct(f.company, "Widget", "W-1", types.MustMoney(price))
	p.Quantity = types.NewQuantity(qty)
	require.NoError(f.t, f.store.Products().Create(f.ctx, p))
	return p
}

func (f *fixture) partner(kind partners.Kind, limit string) *partners.Partner {
	f.t.Helper()
	p := partners.NewPartner(f.company, kind, "Acme", id.New().String()+"@acme.test")
	p.CreditLimit = types.MustMoney(limit)
	require.NoError(f.t, f.store.Partners().Create(f.ctx, p))
	return p
}

func (f *fixture) account(name, opening string) *accounts.Account {
	f.t.Helper()
	a, err := f.svc.Accounts.Create(f.ctx, accounts.CreateInput{
		Name:           name,
		Type:           accounts.TypeCash,
		OpeningBalance: types.MustMoney(opening),
	})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) invoice(typ invoices.Type, partnerID, productID id.ID, qty int64, price string) *invoices.Invoice {
	f.t.Helper()
	inv := invoices.NewInvoice(f.company, typ, partnerID)
	inv.AddLine(productID, types.NewQuantity(qty), types.MustMoney(price), types.Zero())
	require.NoError(f.t, f.svc.Invoices.Create(f.ctx, inv))
	return inv
}

func (f *fixture) quantity(productID id.ID) types.Quantity {
	f.t.Helper()
	p, err := f.store.Products().GetByID(f.ctx, f.company, productID)
	require.NoError(f.t, err)
	return p.Quantity
}

func (f *fixture) partnerBalance(ref partners.Ref) types.Money {
	f.t.Helper()
	p, err := f.store.Partners().GetByID(f.ctx, f.company, ref)
	require.NoError(f.t, err)
	return p.Balance
}

func (f *fixture) accountBalance(accountID id.ID) types.Money {
	f.t.Helper()
	a, err := f.store.Accounts().GetByID(f.ctx, f.company, accountID)
	require.NoError(f.t, err)
	return a.Balance
}

func (f *fixture) entries(filter ledger.ListFilter) []ledger.Entry {
	f.t.Helper()
	list, err := f.store.Ledger().List(f.ctx, f.company, filter)
	require.NoError(f.t, err)
	return list
}

// assertReconciled recomputes the whole company and expects no drift.
func (f *fixture) assertReconciled() {
	f.t.Helper()
	report, err := f.svc.Reconciler.RecomputeCompany(f.ctx, f.company)
	require.NoError(f.t, err)
	assert.Empty(f.t, report.Drifted, "incremental caches disagree with replay")
}

func money(s string) types.Money { return types.MustMoney(s) }

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, got.Equal(money(want)), "want %s, got %s", want, got)
}

func TestApproveSaleInvoice(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")
	assert.Equal(t, "SINV-"+inv.Date.Format("2006")+"-00001", inv.Number)

	approved, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusApproved, approved.Status)

	assert.Equal(t, types.NewQuantity(90), f.quantity(p.ID))
	assertMoney(t, "600", f.partnerBalance(customer.Ref()))

	accruals := f.entries(ledger.ListFilter{Kind: ptr(ledger.KindInvoiceAccrual)})
	require.Len(t, accruals, 1)
	assertMoney(t, "600", accruals[0].Amount)
	assert.True(t, id.Equal(accruals[0].InvoiceID, inv.ID))

	evts := f.store.Outbox().Events()
	require.NotEmpty(t, evts)
	assert.Equal(t, events.InvoiceApproved, evts[len(evts)-1].EventType)
	f.assertReconciled()
}

func TestApproveInsufficientStockLeavesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 150, "60")

	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, types.NewQuantity(100), f.quantity(p.ID))
	assert.Empty(t, f.entries(ledger.ListFilter{IncludeCancelled: true}))
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())

	stored, err := f.svc.Invoices.Get(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusDraft, stored.Status)
}

func TestApproveMovesUntrackedProducts(t *testing.T) {
	f := newFixture(t)
	p := products.NewProduct(f.company, "Service hour", "SRV-1", money("25"))
	p.TrackStock = false
	p.Quantity = types.NewQuantity(5)
	require.NoError(t, f.store.Products().Create(f.ctx, p))
	customer := f.partner(partners.KindCustomer, "0")

	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "25")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err, "untracked products skip the availability check")

	assert.Equal(t, types.NewQuantity(-5), f.quantity(p.ID))
	movements, err := f.store.Stock().GetMovementsByInvoice(f.ctx, f.company, inv.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, types.NewQuantity(10), movements[0].Quantity)

	require.NoError(t, f.svc.Invoices.Delete(f.admin(), inv.ID))
	assert.Equal(t, types.NewQuantity(5), f.quantity(p.ID))
	movements, err = f.store.Stock().GetMovementsByInvoice(f.ctx, f.company, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
	f.assertReconciled()
}

func TestSaleLeavesUntrackedProductsAlone(t *testing.T) {
	f := newFixture(t)
	p := products.NewProduct(f.company, "Gift wrap", "GW-1", money("3"))
	p.TrackStock = false
	require.NoError(t, f.store.Products().Create(f.ctx, p))
	till := f.account("Till", "0")

	sale, err := f.svc.POS.RecordSale(f.ctx, pos.Input{
		Items:     []pos.ItemInput{{ProductID: p.ID, Quantity: types.NewQuantity(4)}},
		AccountID: id.Ptr(till.ID),
	})
	require.NoError(t, err)
	assertMoney(t, "12", sale.Total)
	assert.True(t, f.quantity(p.ID).IsZero())

	_, err = f.svc.POS.CancelSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, f.quantity(p.ID).IsZero())
}

func TestCollectFullyPaysInvoice(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	cash := f.account("Till", "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)

	pay, err := f.svc.Invoices.Collect(f.ctx, inv.ID, money("600"), cash.ID)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusPaid, pay.Invoice.Status)
	assertMoney(t, "600", f.accountBalance(cash.ID))
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())

	_, err = f.svc.Invoices.Collect(f.ctx, inv.ID, money("1"), cash.ID)
	assert.True(t, apperror.IsInvalidStateTransition(err))
	f.assertReconciled()
}

func TestPartialCollectionKeepsApproved(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	cash := f.account("Till", "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)

	pay, err := f.svc.Invoices.Collect(f.ctx, inv.ID, money("200"), cash.ID)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusApproved, pay.Invoice.Status)
	assertMoney(t, "400", f.partnerBalance(customer.Ref()))

	_, err = f.svc.Invoices.Collect(f.ctx, inv.ID, money("400.01"), cash.ID)
	assert.True(t, apperror.IsInvalidStateTransition(err))
}

func TestPayRequiresFunds(t *testing.T) {
	f := newFixture(t)
	p := f.product(0, "10")
	supplier := f.partner(partners.KindSupplier, "0")
	bank := f.account("Bank", "50")
	inv := f.invoice(invoices.TypePurchase, supplier.ID, p.ID, 10, "10")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), f.quantity(p.ID))
	assertMoney(t, "100", f.partnerBalance(supplier.Ref()))

	_, err = f.svc.Invoices.Pay(f.ctx, inv.ID, money("100"), bank.ID)
	assert.True(t, apperror.IsInsufficientFunds(err))

	_, err = f.svc.Invoices.Pay(f.ctx, inv.ID, money("50"), bank.ID)
	require.NoError(t, err)
	assert.True(t, f.accountBalance(bank.ID).IsZero())
	assertMoney(t, "50", f.partnerBalance(supplier.Ref()))
	f.assertReconciled()
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	x := f.account("X", "1000")
	y := f.account("Y", "0")

	entry, err := f.svc.Accounts.Transfer(f.ctx, accounts.TransferInput{
		SourceID: x.ID,
		TargetID: y.ID,
		Amount:   money("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindTransfer, entry.Kind)

	assertMoney(t, "700", f.accountBalance(x.ID))
	assertMoney(t, "300", f.accountBalance(y.ID))
	assert.Len(t, f.entries(ledger.ListFilter{Kind: ptr(ledger.KindTransfer)}), 1)

	_, err = f.svc.Accounts.Transfer(f.ctx, accounts.TransferInput{
		SourceID: y.ID,
		TargetID: x.ID,
		Amount:   money("300.01"),
	})
	assert.True(t, apperror.IsInsufficientFunds(err))
	assert.Len(t, f.entries(ledger.ListFilter{Kind: ptr(ledger.KindTransfer)}), 1)
}

func TestConcurrentApprovalSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Invoices.Approve(f.ctx, inv.ID)
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.IsInvalidStateTransition(err):
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, types.NewQuantity(90), f.quantity(p.ID))
	assert.Len(t, f.entries(ledger.ListFilter{Kind: ptr(ledger.KindInvoiceAccrual)}), 1)
}

func TestDeleteApprovedInvoiceRoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	cash := f.account("Till", "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)
	_, err = f.svc.Invoices.Collect(f.ctx, inv.ID, money("250"), cash.ID)
	require.NoError(t, err)

	err = f.svc.Invoices.Delete(f.ctx, inv.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	require.NoError(t, f.svc.Invoices.Delete(f.admin(), inv.ID))

	assert.Equal(t, types.NewQuantity(100), f.quantity(p.ID))
	assert.True(t, f.accountBalance(cash.ID).IsZero())
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())
	assert.Empty(t, f.entries(ledger.ListFilter{}))
	assert.Len(t, f.entries(ledger.ListFilter{IncludeCancelled: true}), 2)

	_, err = f.svc.Invoices.Get(f.ctx, inv.ID)
	assert.True(t, apperror.IsNotFound(err))
	f.assertReconciled()
}

func TestCancelKeepsInvoice(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)

	canceled, err := f.svc.Invoices.Cancel(f.admin(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusCanceled, canceled.Status)
	assert.Equal(t, types.NewQuantity(100), f.quantity(p.ID))
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())

	_, err = f.svc.Invoices.Cancel(f.admin(), inv.ID)
	assert.True(t, apperror.IsInvalidStateTransition(err))

	records := f.store.AuditLog().Records()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, "boss", last.UserID)
}

func TestSetStatusRecomputesPartner(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.svc.Invoices.SetStatus(f.ctx, inv.ID, invoices.StatusDraft)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	updated, err := f.svc.Invoices.SetStatus(f.admin(), inv.ID, invoices.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusDraft, updated.Status)
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero(), "draft invoices do not count toward the partner")
	f.assertReconciled()
}

func TestCreditLimitBlocksApproval(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "500")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 10, "60")

	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeCreditLimitExceeded))
	assert.Equal(t, types.NewQuantity(100), f.quantity(p.ID))
}

func TestManualTransactionLifecycle(t *testing.T) {
	f := newFixture(t)
	cash := f.account("Till", "0")
	bank := f.account("Bank", "0")
	customer := f.partner(partners.KindCustomer, "0")

	entry, err := f.svc.Transactions.Create(f.ctx, transactions.Input{
		Kind:        ledger.KindIncome,
		Amount:      money("120"),
		AccountID:   cash.ID,
		CustomerID:  id.Ptr(customer.ID),
		Description: "deposit",
	})
	require.NoError(t, err)
	assertMoney(t, "120", f.accountBalance(cash.ID))
	assertMoney(t, "-120", f.partnerBalance(customer.Ref()))

	moved, err := f.svc.Transactions.Update(f.ctx, entry.ID, transactions.Patch{
		Amount:       ptr(money("80")),
		AccountID:    ptr(bank.ID),
		ClearPartner: true,
	})
	require.NoError(t, err)
	assert.True(t, id.Equal(moved.TargetAccountID, bank.ID))
	assert.True(t, f.accountBalance(cash.ID).IsZero())
	assertMoney(t, "80", f.accountBalance(bank.ID))
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())

	require.NoError(t, f.svc.Transactions.Delete(f.ctx, entry.ID))
	assert.True(t, f.accountBalance(bank.ID).IsZero())

	err = f.svc.Transactions.Delete(f.ctx, entry.ID)
	assert.True(t, apperror.IsInvalidStateTransition(err))
	f.assertReconciled()

	var kinds []string
	for _, evt := range f.store.Outbox().Events() {
		if evt.AggregateID == entry.ID {
			kinds = append(kinds, evt.EventType)
		}
	}
	assert.Equal(t, []string{
		events.TransactionRecorded,
		events.TransactionUpdated,
		events.TransactionCancelled,
	}, kinds)

	var actions []audit.Action
	for _, rec := range f.store.AuditLog().Records() {
		if rec.EntityID == entry.ID {
			assert.Equal(t, "clerk", rec.UserID)
			actions = append(actions, rec.Action)
		}
	}
	assert.Equal(t, []audit.Action{audit.ActionUpdate, audit.ActionDelete}, actions)
}

func TestManualTransactionRejectsInvoiceEntries(t *testing.T) {
	f := newFixture(t)
	p := f.product(100, "60")
	customer := f.partner(partners.KindCustomer, "0")
	inv := f.invoice(invoices.TypeSale, customer.ID, p.ID, 1, "60")
	_, err := f.svc.Invoices.Approve(f.ctx, inv.ID)
	require.NoError(t, err)

	accrual := f.entries(ledger.ListFilter{})[0]
	_, err = f.svc.Transactions.Update(f.ctx, accrual.ID, transactions.Patch{Amount: ptr(money("1"))})
	assert.True(t, apperror.IsInvalidStateTransition(err))
	assert.True(t, apperror.IsInvalidStateTransition(f.svc.Transactions.Delete(f.ctx, accrual.ID)))
}

func TestCashSaleWithCustomerNetsToZero(t *testing.T) {
	f := newFixture(t)
	p := f.product(5, "40")
	customer := f.partner(partners.KindCustomer, "0")
	till := f.account("Till", "0")

	sale, err := f.svc.POS.RecordSale(f.ctx, pos.Input{
		Items:      []pos.ItemInput{{ProductID: p.ID, Quantity: types.NewQuantity(2)}},
		AccountID:  id.Ptr(till.ID),
		CustomerID: id.Ptr(customer.ID),
	})
	require.NoError(t, err)
	assertMoney(t, "80", sale.Total)
	assert.Equal(t, types.NewQuantity(3), f.quantity(p.ID))
	assertMoney(t, "80", f.accountBalance(till.ID))
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())
	f.assertReconciled()

	_, err = f.svc.POS.CancelSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(5), f.quantity(p.ID))
	assert.True(t, f.accountBalance(till.ID).IsZero())

	_, err = f.svc.POS.CancelSale(f.ctx, sale.ID)
	assert.True(t, apperror.IsInvalidStateTransition(err))

	recent, err := f.svc.POS.ListRecentSales(f.ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestCreditSale(t *testing.T) {
	f := newFixture(t)
	p := f.product(5, "40")
	customer := f.partner(partners.KindCustomer, "100")

	_, err := f.svc.POS.RecordSale(f.ctx, pos.Input{
		Items:    []pos.ItemInput{{ProductID: p.ID, Quantity: types.NewQuantity(1)}},
		OnCredit: true,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	sale, err := f.svc.POS.RecordSale(f.ctx, pos.Input{
		Items:      []pos.ItemInput{{ProductID: p.ID, Quantity: types.NewQuantity(2)}},
		OnCredit:   true,
		CustomerID: id.Ptr(customer.ID),
	})
	require.NoError(t, err)
	assertMoney(t, "80", f.partnerBalance(customer.Ref()))

	_, err = f.svc.POS.RecordSale(f.ctx, pos.Input{
		Items:      []pos.ItemInput{{ProductID: p.ID, Quantity: types.NewQuantity(1)}},
		OnCredit:   true,
		CustomerID: id.Ptr(customer.ID),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeCreditLimitExceeded))
	assert.Equal(t, types.NewQuantity(3), f.quantity(p.ID))

	_, err = f.svc.POS.CancelSale(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, f.partnerBalance(customer.Ref()).IsZero())
	f.assertReconciled()
}

func TestRecomputeRepairsDriftAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	cash := f.account("Till", "250")

	require.NoError(t, f.store.Accounts().SetBalance(f.ctx, f.company, cash.ID, money("999")))

	res, err := f.svc.Reconciler.RecomputeAccountBalance(f.ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, res.Drifted)
	assertMoney(t, "250", res.Computed)

	again, err := f.svc.Reconciler.RecomputeAccountBalance(f.ctx, cash.ID)
	require.NoError(t, err)
	assert.False(t, again.Drifted)
	assertMoney(t, "250", f.accountBalance(cash.ID))
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	cash := f.account("Till", "10")

	other := tenant.WithCompany(context.Background(), id.New())
	_, err := f.svc.Accounts.Get(other, cash.ID)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.Accounts.Get(context.Background(), cash.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestBatchReconcilesEveryCompany(t *testing.T) {
	f := newFixture(t)
	cash := f.account("Till", "10")
	require.NoError(t, f.store.Accounts().SetBalance(f.ctx, f.company, cash.ID, money("0")))

	report, err := f.svc.Batch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Companies, 1)
	assert.Equal(t, 1, report.DriftCount())
	assertMoney(t, "10", f.accountBalance(cash.ID))
}

func TestCashFlowReport(t *testing.T) {
	f := newFixture(t)
	cash := f.account("Till", "100")
	_, err := f.svc.Transactions.Create(f.ctx, transactions.Input{
		Kind:      ledger.KindExpense,
		Amount:    money("30"),
		AccountID: cash.ID,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	report, err := f.svc.Reports.CashFlow(f.ctx, reports.CashFlowFilter{
		From:    now.Add(-time.Hour),
		To:      now.Add(time.Hour),
		GroupBy: reports.GroupByDay,
	})
	require.NoError(t, err)
	assertMoney(t, "100", report.TotalIncome)
	assertMoney(t, "30", report.TotalExpense)
	assertMoney(t, "70", report.Net)
}

func TestAccountBalanceLifecycle(t *testing.T) {
	f := newFixture(t)
	cash := f.account("Till", "100")
	assertMoney(t, "100", cash.Balance)

	_, err := f.svc.Accounts.Update(f.ctx, cash.ID, accounts.UpdateInput{Balance: ptr(money("120"))})
	require.NoError(t, err)
	assertMoney(t, "120", f.accountBalance(cash.ID))
	assert.Len(t, f.entries(ledger.ListFilter{AccountID: &cash.ID}), 2)

	_, err = f.svc.Accounts.AdjustBalance(f.ctx, cash.ID, money("100"), "count", false)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	adj, err := f.svc.Accounts.AdjustBalance(f.ctx, cash.ID, money("100"), "count", true)
	require.NoError(t, err)
	assertMoney(t, "-20", adj.Difference)
	assert.Equal(t, ledger.KindExpense, adj.Entry.Kind)
	assertMoney(t, "100", f.accountBalance(cash.ID))

	_, err = f.svc.Accounts.AdjustBalance(f.ctx, cash.ID, money("100"), "count", true)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	err = f.svc.Accounts.Delete(f.ctx, cash.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	f.assertReconciled()

	spare := f.account("Spare", "0")
	require.NoError(t, f.svc.Accounts.Delete(f.ctx, spare.ID))
	_, err = f.svc.Accounts.Get(f.ctx, spare.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestPartnerAccountRemovesOrphanPartner(t *testing.T) {
	f := newFixture(t)
	acc, err := f.svc.Accounts.Create(f.ctx, accounts.CreateInput{
		Name:         "Acme current account",
		Type:         accounts.TypePartner,
		PartnerKind:  partners.KindCustomer,
		PartnerEmail: "Billing@Acme.test",
	})
	require.NoError(t, err)

	ref, ok := acc.Partner()
	require.True(t, ok)
	p, err := f.store.Partners().FindByEmail(f.ctx, f.company, partners.KindCustomer, "billing@acme.test")
	require.NoError(t, err)
	assert.Equal(t, ref.ID, p.ID)

	require.NoError(t, f.svc.Accounts.Delete(f.ctx, acc.ID))
	_, err = f.store.Partners().GetByID(f.ctx, f.company, ref)
	assert.True(t, apperror.IsNotFound(err))
}

func ptr[T any](v T) *T { return &v }
