// Package invoices provides the sale/purchase invoice document and its
// lifecycle: draft, approved, paid, canceled.
package invoices

import (
	"context"
	"strings"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/entity"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
)

// Type of invoice.
type Type string

const (
	TypeSale     Type = "sale"
	TypePurchase Type = "purchase"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool { return t == TypeSale || t == TypePurchase }

// PartnerKind is the partner kind an invoice of type t references.
func (t Type) PartnerKind() partners.Kind {
	if t == TypePurchase {
		return partners.KindSupplier
	}
	return partners.KindCustomer
}

// Prefix is the numbering prefix for t.
func (t Type) Prefix() string {
	if t == TypePurchase {
		return PurchasePrefix
	}
	return SalePrefix
}

// Status of invoice.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

// Open reports whether the invoice counts toward its partner's balance.
func (s Status) Open() bool { return s == StatusApproved || s == StatusPaid }

// Invoice represents a sale or purchase invoice.
type Invoice struct {
	entity.BaseEntity

	Number string `db:"number" json:"number"`
	Type   Type   `db:"type" json:"type"`
	Status Status `db:"status" json:"status"`

	PartnerKind partners.Kind `db:"partner_kind" json:"partnerKind"`
	PartnerID   id.ID         `db:"partner_id" json:"partnerId"`

	Currency     string      `db:"currency" json:"currency"`
	ExchangeRate types.Money `db:"exchange_rate" json:"exchangeRate"`
	Date         time.Time   `db:"invoice_date" json:"date"`
	DueDate      *time.Time  `db:"due_date" json:"dueDate,omitempty"`
	Notes        string      `db:"notes" json:"notes,omitempty"`

	// Totals (calculated from lines)
	Subtotal    types.Money `db:"subtotal" json:"subtotal"`
	TotalVAT    types.Money `db:"total_vat" json:"totalVat"`
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	PaidAmount  types.Money `db:"paid_amount" json:"paidAmount"`

	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	CreatedBy  string     `db:"created_by" json:"createdBy,omitempty"`

	// Table part
	Lines []Line `db:"-" json:"lines"`
}

// Line represents an invoice line.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID   id.ID          `db:"product_id" json:"productId"`
	Description string         `db:"description" json:"description,omitempty"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`

	// Cascaded percentage discounts, applied in order.
	Discount1 types.Money `db:"discount1" json:"discount1"`
	Discount2 types.Money `db:"discount2" json:"discount2"`
	Discount3 types.Money `db:"discount3" json:"discount3"`
	Discount4 types.Money `db:"discount4" json:"discount4"`

	VATRate   types.Money `db:"vat_rate" json:"vatRate"`
	NetAmount types.Money `db:"net_amount" json:"netAmount"`
	VATAmount types.Money `db:"vat_amount" json:"vatAmount"`
	Amount    types.Money `db:"amount" json:"amount"`
}

// Discounts returns the line's discounts in application order.
func (l *Line) Discounts() []types.Money {
	return []types.Money{l.Discount1, l.Discount2, l.Discount3, l.Discount4}
}

// SetDiscounts assigns up to MaxDiscounts discounts.
func (l *Line) SetDiscounts(discounts ...types.Money) {
	slots := []*types.Money{&l.Discount1, &l.Discount2, &l.Discount3, &l.Discount4}
	for i, slot := range slots {
		*slot = types.Zero()
		if i < len(discounts) {
			*slot = discounts[i]
		}
	}
}

// Calculate computes the line amounts:
//
//	net    = qty × price × Π(1 − dᵢ/100)
//	amount = net × (1 + vat/100)
//
// Both rounded to two places.
func (l *Line) Calculate() {
	hundred := types.NewMoney(100)
	net := l.Quantity.Decimal().Mul(l.UnitPrice)
	for _, d := range l.Discounts() {
		if d.IsZero() {
			continue
		}
		net = net.Mul(hundred.Sub(d)).Div(hundred)
	}
	l.NetAmount = types.RoundMoney(net)
	l.VATAmount = types.RoundMoney(net.Mul(l.VATRate).Div(hundred))
	l.Amount = l.NetAmount.Add(l.VATAmount)
}

// NewInvoice creates a draft invoice for the partner.
func NewInvoice(companyID id.ID, typ Type, partnerID id.ID) *Invoice {
	return &Invoice{
		BaseEntity:   entity.NewBaseEntity(companyID),
		Type:         typ,
		Status:       StatusDraft,
		PartnerKind:  typ.PartnerKind(),
		PartnerID:    partnerID,
		Currency:     "TRY",
		ExchangeRate: types.NewMoney(1),
		Date:         time.Now().UTC(),
		Lines:        make([]Line, 0),
	}
}

// AddLine adds a line and recalculates totals.
func (inv *Invoice) AddLine(productID id.ID, quantity types.Quantity, unitPrice, vatRate types.Money, discounts ...types.Money) {
	line := Line{
		LineID:    id.New(),
		LineNo:    len(inv.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		VATRate:   vatRate,
	}
	line.SetDiscounts(discounts...)
	inv.Lines = append(inv.Lines, line)
	inv.RecalculateTotals()
}

// RecalculateTotals recomputes every line and the invoice totals.
func (inv *Invoice) RecalculateTotals() {
	inv.Subtotal, inv.TotalVAT, inv.TotalAmount = types.Zero(), types.Zero(), types.Zero()
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if id.IsNil(line.LineID) {
			line.LineID = id.New()
		}
		line.LineNo = i + 1
		line.Calculate()
		inv.Subtotal = inv.Subtotal.Add(line.NetAmount)
		inv.TotalVAT = inv.TotalVAT.Add(line.VATAmount)
		inv.TotalAmount = inv.TotalAmount.Add(line.Amount)
	}
}

// Partner returns the invoice's partner reference.
func (inv *Invoice) Partner() partners.Ref {
	return partners.Ref{Kind: inv.PartnerKind, ID: inv.PartnerID}
}

// Remaining is the unpaid part of the total.
func (inv *Invoice) Remaining() types.Money {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

// CanModify returns an error unless the invoice is a draft.
func (inv *Invoice) CanModify(action string) error {
	if inv.Status != StatusDraft {
		return apperror.NewInvalidStateTransition("invoice", inv.ID, string(inv.Status), action)
	}
	return nil
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.ValidateBase(); err != nil {
		return err
	}
	if !inv.Type.Valid() {
		return apperror.NewValidation("invalid invoice type").WithDetail("type", inv.Type)
	}
	if !inv.Status.Valid() {
		return apperror.NewValidation("invalid invoice status").WithDetail("status", inv.Status)
	}
	if inv.PartnerKind != inv.Type.PartnerKind() {
		return apperror.NewValidation("partner kind does not match invoice type").
			WithDetail("type", inv.Type).
			WithDetail("partnerKind", inv.PartnerKind)
	}
	if id.IsNil(inv.PartnerID) {
		return apperror.NewValidation("partner is required").WithDetail("field", "partnerId")
	}
	if strings.TrimSpace(inv.Currency) == "" {
		return apperror.NewValidation("currency is required").WithDetail("field", "currency")
	}
	if !inv.ExchangeRate.IsPositive() {
		return apperror.NewValidation("exchange rate must be positive").WithDetail("field", "exchangeRate")
	}
	if inv.DueDate != nil && inv.DueDate.Before(inv.Date.Truncate(24*time.Hour)) {
		return apperror.NewValidation("due date cannot precede invoice date").WithDetail("field", "dueDate")
	}
	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	hundred := types.NewMoney(100)
	for i, line := range inv.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.VATRate.IsNegative() || line.VATRate.GreaterThan(hundred) {
			return apperror.NewValidation("vat rate must be between 0 and 100").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		for _, d := range line.Discounts() {
			if d.IsNegative() || d.GreaterThan(hundred) {
				return apperror.NewValidation("discount must be between 0 and 100").
					WithDetail("field", "lines").
					WithDetail("lineNo", i+1)
			}
		}
	}
	return nil
}

// StockDirection is the movement direction approval records.
func (inv *Invoice) StockDirection() stock.Direction {
	if inv.Type == TypePurchase {
		return stock.DirectionIn
	}
	return stock.DirectionOut
}

// ApprovalSet builds the stock requests and the accrual entry approval posts.
func (inv *Invoice) ApprovalSet(actor string) ([]stock.Request, ledger.Entry) {
	requests := make([]stock.Request, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		requests = append(requests, stock.Request{
			ProductID: line.ProductID,
			Direction: inv.StockDirection(),
			Quantity:  line.Quantity,
			InvoiceID: id.Ptr(inv.ID),
			Reason:    "invoice " + inv.Number,
		})
	}

	accrual := ledger.NewEntry(inv.CompanyID, ledger.KindInvoiceAccrual, inv.TotalAmount,
		"Invoice "+inv.Number+" accrual")
	accrual.Currency = inv.Currency
	accrual.OccurredAt = inv.Date
	accrual.InvoiceID = id.Ptr(inv.ID)
	accrual.SetPartner(inv.Partner())
	accrual.CreatedBy = actor
	return requests, accrual
}
