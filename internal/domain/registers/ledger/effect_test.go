package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
)

func entry(kind Kind, amount string) Entry {
	return NewEntry(id.New(), kind, types.MustMoney(amount), "")
}

func TestAccountEffect(t *testing.T) {
	cash, bank := id.New(), id.New()

	income := entry(KindIncome, "100")
	income.TargetAccountID = id.Ptr(cash)

	expense := entry(KindExpense, "40")
	expense.SourceAccountID = id.Ptr(cash)

	transfer := entry(KindTransfer, "25.50")
	transfer.SourceAccountID = id.Ptr(cash)
	transfer.TargetAccountID = id.Ptr(bank)

	accrual := entry(KindInvoiceAccrual, "300")
	accrual.InvoiceID = id.Ptr(id.New())
	accrual.CustomerID = id.Ptr(id.New())

	cancelled := income
	cancelled.Cancelled = true

	tests := []struct {
		name    string
		e       Entry
		account id.ID
		want    string
	}{
		{"income to target", income, cash, "100"},
		{"income elsewhere", income, bank, "0"},
		{"expense from source", expense, cash, "-40"},
		{"transfer source", transfer, cash, "-25.5"},
		{"transfer target", transfer, bank, "25.5"},
		{"accrual never touches accounts", accrual, cash, "0"},
		{"cancelled entry", cancelled, cash, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccountEffect(tt.e, tt.account)
			assert.True(t, got.Equal(types.MustMoney(tt.want)), "got %s", got)
		})
	}
}

func TestPartnerEffect(t *testing.T) {
	customer, supplier := id.New(), id.New()
	custRef, suppRef := partners.CustomerRef(customer), partners.SupplierRef(supplier)

	saleAccrual := entry(KindInvoiceAccrual, "500")
	saleAccrual.InvoiceID = id.Ptr(id.New())
	saleAccrual.CustomerID = id.Ptr(customer)

	purchaseAccrual := entry(KindInvoiceAccrual, "200")
	purchaseAccrual.InvoiceID = id.Ptr(id.New())
	purchaseAccrual.SupplierID = id.Ptr(supplier)

	receivable := entry(KindReceivableAdjustment, "80")
	receivable.CustomerID = id.Ptr(customer)

	collected := entry(KindIncome, "150")
	collected.TargetAccountID = id.Ptr(id.New())
	collected.CustomerID = id.Ptr(customer)

	paid := entry(KindExpense, "60")
	paid.SourceAccountID = id.Ptr(id.New())
	paid.SupplierID = id.Ptr(supplier)

	tests := []struct {
		name string
		e    Entry
		ref  partners.Ref
		want string
	}{
		{"sale accrual", saleAccrual, custRef, "500"},
		{"purchase accrual", purchaseAccrual, suppRef, "200"},
		{"receivable adjustment", receivable, custRef, "80"},
		{"collection lowers receivable", collected, custRef, "-150"},
		{"payment lowers payable", paid, suppRef, "-60"},
		{"kind mismatch", paid, partners.CustomerRef(supplier), "0"},
		{"other partner", collected, partners.CustomerRef(id.New()), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PartnerEffect(tt.e, tt.ref)
			assert.True(t, got.Equal(types.MustMoney(tt.want)), "got %s", got)
		})
	}
}

func TestDeltas_CashSaleWithCustomerNetsToZero(t *testing.T) {
	customer, cash := id.New(), id.New()
	saleID := id.New()

	receivable := entry(KindReceivableAdjustment, "120")
	receivable.CustomerID = id.Ptr(customer)
	receivable.SaleID = id.Ptr(saleID)

	income := entry(KindIncome, "120")
	income.TargetAccountID = id.Ptr(cash)
	income.CustomerID = id.Ptr(customer)
	income.SaleID = id.Ptr(saleID)

	accounts, parts := Deltas([]Entry{receivable, income})

	require.Contains(t, accounts, cash)
	assert.True(t, accounts[cash].Equal(types.MustMoney("120")))
	assert.True(t, parts[partners.CustomerRef(customer)].IsZero())
}

func TestAffected_Deduplicates(t *testing.T) {
	a, b, c := id.New(), id.New(), id.New()

	t1 := entry(KindTransfer, "1")
	t1.SourceAccountID, t1.TargetAccountID = id.Ptr(a), id.Ptr(b)
	t2 := entry(KindIncome, "1")
	t2.TargetAccountID = id.Ptr(a)
	t2.CustomerID = id.Ptr(c)
	t3 := entry(KindReceivableAdjustment, "1")
	t3.CustomerID = id.Ptr(c)
	t3.Cancelled = true

	accounts, refs := Affected([]Entry{t1, t2, t3})
	assert.ElementsMatch(t, []id.ID{a, b}, accounts)
	assert.Equal(t, []partners.Ref{partners.CustomerRef(c)}, refs)
}

func TestEntry_Validate(t *testing.T) {
	ctx := context.Background()
	acc := id.New()

	valid := entry(KindIncome, "10")
	valid.TargetAccountID = id.Ptr(acc)
	require.NoError(t, valid.Validate(ctx))

	zero := valid
	zero.Amount = types.Zero()
	assert.True(t, apperror.HasCode(zero.Validate(ctx), apperror.CodeValidation))

	both := valid
	both.CustomerID, both.SupplierID = id.Ptr(id.New()), id.Ptr(id.New())
	assert.Error(t, both.Validate(ctx))

	selfTransfer := entry(KindTransfer, "10")
	selfTransfer.SourceAccountID, selfTransfer.TargetAccountID = id.Ptr(acc), id.Ptr(acc)
	assert.Error(t, selfTransfer.Validate(ctx))

	orphanAccrual := entry(KindInvoiceAccrual, "10")
	orphanAccrual.CustomerID = id.Ptr(id.New())
	assert.Error(t, orphanAccrual.Validate(ctx))

	receivable := entry(KindReceivableAdjustment, "10")
	assert.Error(t, receivable.Validate(ctx))
	receivable.CustomerID = id.Ptr(id.New())
	assert.NoError(t, receivable.Validate(ctx))
}

func TestListFilter_Matches(t *testing.T) {
	acc := id.New()
	e := entry(KindExpense, "5")
	e.SourceAccountID = id.Ptr(acc)
	e.Description = "Office Rent March"

	assert.True(t, ListFilter{}.Matches(&e))
	assert.True(t, ListFilter{AccountID: id.Ptr(acc), Search: "rent"}.Matches(&e))
	assert.False(t, ListFilter{AccountID: id.Ptr(id.New())}.Matches(&e))

	e.InvoiceID = id.Ptr(id.New())
	assert.False(t, ListFilter{ManualOnly: true}.Matches(&e))

	e.Cancelled = true
	assert.False(t, ListFilter{}.Matches(&e))
	assert.True(t, ListFilter{IncludeCancelled: true}.Matches(&e))
}
