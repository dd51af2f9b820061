package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
)

func TestLineCalculate(t *testing.T) {
	tests := []struct {
		name      string
		qty       int64
		price     string
		vat       string
		discounts []string
		wantNet   string
		wantVAT   string
		wantTotal string
	}{
		{"plain", 3, "10", "0", nil, "30", "0", "30"},
		{"with vat", 2, "50", "20", nil, "100", "20", "120"},
		{"cascaded discounts", 1, "200", "10", []string{"10", "5"}, "171", "17.1", "188.1"},
		{"rounds to cents", 3, "0.335", "18", nil, "1.01", "0.18", "1.19"},
		{"full discount", 4, "25", "20", []string{"100"}, "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Line{
				Quantity:  types.NewQuantity(tt.qty),
				UnitPrice: types.MustMoney(tt.price),
				VATRate:   types.MustMoney(tt.vat),
			}
			ds := make([]types.Money, 0, len(tt.discounts))
			for _, d := range tt.discounts {
				ds = append(ds, types.MustMoney(d))
			}
			l.SetDiscounts(ds...)
			l.Calculate()

			assert.True(t, l.NetAmount.Equal(types.MustMoney(tt.wantNet)), "net %s", l.NetAmount)
			assert.True(t, l.VATAmount.Equal(types.MustMoney(tt.wantVAT)), "vat %s", l.VATAmount)
			assert.True(t, l.Amount.Equal(types.MustMoney(tt.wantTotal)), "amount %s", l.Amount)
		})
	}
}

func TestInvoiceTotalsSumLines(t *testing.T) {
	inv := NewInvoice(id.New(), TypeSale, id.New())
	inv.AddLine(id.New(), types.NewQuantity(2), types.MustMoney("50"), types.MustMoney("20"))
	inv.AddLine(id.New(), types.NewQuantity(1), types.MustMoney("200"), types.MustMoney("10"), types.MustMoney("10"), types.MustMoney("5"))

	assert.True(t, inv.Subtotal.Equal(types.MustMoney("271")))
	assert.True(t, inv.TotalVAT.Equal(types.MustMoney("37.1")))
	assert.True(t, inv.TotalAmount.Equal(types.MustMoney("308.1")))
	assert.Equal(t, 2, inv.Lines[1].LineNo)

	inv.PaidAmount = types.MustMoney("100")
	assert.True(t, inv.Remaining().Equal(types.MustMoney("208.1")))
}

func TestInvoiceValidate(t *testing.T) {
	valid := func() *Invoice {
		inv := NewInvoice(id.New(), TypePurchase, id.New())
		inv.AddLine(id.New(), types.NewQuantity(1), types.MustMoney("10"), types.MustMoney("18"))
		return inv
	}
	require.NoError(t, valid().Validate(context.Background()))

	tests := []struct {
		name   string
		mutate func(inv *Invoice)
	}{
		{"no lines", func(inv *Invoice) { inv.Lines = nil }},
		{"partner kind mismatch", func(inv *Invoice) { inv.PartnerKind = partners.KindCustomer }},
		{"zero quantity", func(inv *Invoice) { inv.Lines[0].Quantity = 0 }},
		{"vat above 100", func(inv *Invoice) { inv.Lines[0].VATRate = types.MustMoney("101") }},
		{"negative discount", func(inv *Invoice) { inv.Lines[0].Discount2 = types.MustMoney("-1") }},
		{"zero exchange rate", func(inv *Invoice) { inv.ExchangeRate = types.Zero() }},
		{"due before date", func(inv *Invoice) {
			due := inv.Date.AddDate(0, 0, -2)
			inv.DueDate = &due
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := valid()
			tt.mutate(inv)
			err := inv.Validate(context.Background())
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestApprovalSet(t *testing.T) {
	inv := NewInvoice(id.New(), TypeSale, id.New())
	inv.Number = "SINV-2026-00001"
	productID := id.New()
	inv.AddLine(productID, types.NewQuantity(3), types.MustMoney("10"), types.Zero())

	requests, accrual := inv.ApprovalSet("clerk")
	require.Len(t, requests, 1)
	assert.Equal(t, stock.DirectionOut, requests[0].Direction)
	assert.Equal(t, productID, requests[0].ProductID)

	assert.Equal(t, ledger.KindInvoiceAccrual, accrual.Kind)
	assert.True(t, accrual.Amount.Equal(types.MustMoney("30")))
	assert.True(t, id.Equal(accrual.InvoiceID, inv.ID))
	assert.True(t, id.Equal(accrual.CustomerID, inv.PartnerID))
	assert.Nil(t, accrual.SupplierID)
	require.NoError(t, accrual.Validate(context.Background()))

	purchase := NewInvoice(inv.CompanyID, TypePurchase, id.New())
	assert.Equal(t, stock.DirectionIn, purchase.StockDirection())
	assert.Equal(t, PurchasePrefix, purchase.Type.Prefix())
}

func TestListFilterMatches(t *testing.T) {
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	inv := NewInvoice(id.New(), TypeSale, id.New())
	inv.Number = "SINV-2026-00042"
	inv.Notes = "Spring order"
	inv.Status = StatusApproved
	inv.DueDate = &due
	inv.TotalAmount = types.MustMoney("100")

	sale, purchase := TypeSale, TypePurchase
	before, after := due.AddDate(0, 0, -1), due.AddDate(0, 0, 1)

	assert.True(t, ListFilter{}.Matches(inv))
	assert.True(t, ListFilter{Type: &sale, Search: "spring"}.Matches(inv))
	assert.False(t, ListFilter{Type: &purchase}.Matches(inv))
	assert.True(t, ListFilter{Search: "00042"}.Matches(inv))
	assert.False(t, ListFilter{Search: "winter"}.Matches(inv))
	assert.True(t, ListFilter{DueBefore: &after, Unpaid: true}.Matches(inv))
	assert.False(t, ListFilter{DueBefore: &before}.Matches(inv))

	inv.PaidAmount = inv.TotalAmount
	assert.False(t, ListFilter{Unpaid: true}.Matches(inv))
}
