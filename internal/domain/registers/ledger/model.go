// Package ledger provides the ledger entry register: every monetary fact the
// company records, and the pure functions that turn an entry into balance
// effects on accounts and partners.
package ledger

import (
	"context"
	"strings"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/entity"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
)

// Kind is the classification of an entry. Amounts are always positive;
// direction comes from the kind and the populated references.
type Kind string

const (
	KindIncome               Kind = "income"
	KindExpense              Kind = "expense"
	KindTransfer             Kind = "transfer"
	KindInvoiceAccrual       Kind = "invoice_accrual"
	KindReceivableAdjustment Kind = "receivable_adjustment"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransfer, KindInvoiceAccrual, KindReceivableAdjustment:
		return true
	}
	return false
}

// Entry is one recorded monetary fact.
// Entries are never removed; reversal marks them cancelled.
type Entry struct {
	entity.BaseEntity

	Kind        Kind        `db:"kind" json:"kind"`
	Amount      types.Money `db:"amount" json:"amount"`
	Currency    string      `db:"currency" json:"currency"`
	OccurredAt  time.Time   `db:"occurred_at" json:"occurredAt"`
	Description string      `db:"description" json:"description,omitempty"`

	SourceAccountID *id.ID `db:"source_account_id" json:"sourceAccountId,omitempty"`
	TargetAccountID *id.ID `db:"target_account_id" json:"targetAccountId,omitempty"`
	CustomerID      *id.ID `db:"customer_id" json:"customerId,omitempty"`
	SupplierID      *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
	InvoiceID       *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`
	SaleID          *id.ID `db:"sale_id" json:"saleId,omitempty"`

	Cancelled   bool       `db:"cancelled" json:"cancelled"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy string     `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CreatedBy   string     `db:"created_by" json:"createdBy,omitempty"`
}

// NewEntry creates an entry of kind for amount, dated now.
func NewEntry(companyID id.ID, kind Kind, amount types.Money, description string) Entry {
	return Entry{
		BaseEntity:  entity.NewBaseEntity(companyID),
		Kind:        kind,
		Amount:      amount,
		Currency:    "TRY",
		OccurredAt:  time.Now().UTC(),
		Description: description,
	}
}

// Partner returns the entry's partner reference, if any.
func (e *Entry) Partner() (partners.Ref, bool) {
	switch {
	case e.CustomerID != nil:
		return partners.CustomerRef(*e.CustomerID), true
	case e.SupplierID != nil:
		return partners.SupplierRef(*e.SupplierID), true
	}
	return partners.Ref{}, false
}

// SetPartner sets the customer or supplier reference.
func (e *Entry) SetPartner(ref partners.Ref) {
	e.CustomerID, e.SupplierID = nil, nil
	switch ref.Kind {
	case partners.KindCustomer:
		e.CustomerID = id.Ptr(ref.ID)
	case partners.KindSupplier:
		e.SupplierID = id.Ptr(ref.ID)
	}
}

// Accounts returns the distinct accounts referenced by the entry.
func (e *Entry) Accounts() []id.ID {
	var out []id.ID
	if e.SourceAccountID != nil {
		out = append(out, *e.SourceAccountID)
	}
	if e.TargetAccountID != nil && (e.SourceAccountID == nil || *e.SourceAccountID != *e.TargetAccountID) {
		out = append(out, *e.TargetAccountID)
	}
	return out
}

// IsManual reports whether the entry was recorded directly rather than
// derived from an invoice or a sale.
func (e *Entry) IsManual() bool {
	return e.InvoiceID == nil && e.SaleID == nil
}

// Validate implements entity.Validatable.
func (e *Entry) Validate(ctx context.Context) error {
	if err := e.ValidateBase(); err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return apperror.NewValidation("invalid entry kind").WithDetail("kind", e.Kind)
	}
	if !e.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount").
			WithDetail("amount", e.Amount.String())
	}
	if strings.TrimSpace(e.Currency) == "" {
		return apperror.NewValidation("currency is required").WithDetail("field", "currency")
	}
	if e.CustomerID != nil && e.SupplierID != nil {
		return apperror.NewValidation("entry cannot reference both a customer and a supplier")
	}

	switch e.Kind {
	case KindIncome:
		if e.TargetAccountID == nil || e.SourceAccountID != nil {
			return apperror.NewValidation("income requires a target account only").WithDetail("kind", e.Kind)
		}
	case KindExpense:
		if e.SourceAccountID == nil || e.TargetAccountID != nil {
			return apperror.NewValidation("expense requires a source account only").WithDetail("kind", e.Kind)
		}
	case KindTransfer:
		if e.SourceAccountID == nil || e.TargetAccountID == nil {
			return apperror.NewValidation("transfer requires source and target accounts")
		}
		if *e.SourceAccountID == *e.TargetAccountID {
			return apperror.NewValidation("transfer source and target must differ")
		}
		if e.CustomerID != nil || e.SupplierID != nil {
			return apperror.NewValidation("transfer cannot reference a partner")
		}
	case KindInvoiceAccrual:
		if e.InvoiceID == nil {
			return apperror.NewValidation("invoice accrual requires an invoice")
		}
		if _, ok := e.Partner(); !ok {
			return apperror.NewValidation("invoice accrual requires a partner")
		}
		if e.SourceAccountID != nil || e.TargetAccountID != nil {
			return apperror.NewValidation("invoice accrual cannot reference an account")
		}
	case KindReceivableAdjustment:
		if e.CustomerID == nil {
			return apperror.NewValidation("receivable adjustment requires a customer")
		}
		if e.SourceAccountID != nil || e.TargetAccountID != nil {
			return apperror.NewValidation("receivable adjustment cannot reference an account")
		}
	}
	return nil
}

// Cancel marks the entry cancelled by actor.
func (e *Entry) Cancel(at time.Time, actor string) {
	e.Cancelled = true
	e.CancelledAt = &at
	e.CancelledBy = actor
}
