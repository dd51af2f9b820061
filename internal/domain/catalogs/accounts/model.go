// Package accounts holds cash, bank, card and partner accounts and the
// operations that move money between them.
package accounts

import (
	"context"
	"strings"

	"tally/internal/core/apperror"
	"tally/internal/core/entity"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
)

// Type of account.
type Type string

const (
	TypeCash       Type = "cash"
	TypeBank       Type = "bank"
	TypeCreditCard Type = "credit_card"
	TypePersonnel  Type = "personnel"
	TypePartner    Type = "partner"
)

// Valid reports whether t is a known account type.
func (t Type) Valid() bool {
	switch t {
	case TypeCash, TypeBank, TypeCreditCard, TypePersonnel, TypePartner:
		return true
	}
	return false
}

// DefaultCurrency is used when none is given.
const DefaultCurrency = "TRY"

// Account is a place money sits.
type Account struct {
	entity.BaseEntity

	Name     string `db:"name" json:"name"`
	Type     Type   `db:"type" json:"type"`
	Currency string `db:"currency" json:"currency"`

	// Balance is a cache; the ledger is authoritative.
	Balance types.Money `db:"balance" json:"balance"`

	PartnerKind *partners.Kind `db:"partner_kind" json:"partnerKind,omitempty"`
	PartnerID   *id.ID         `db:"partner_id" json:"partnerId,omitempty"`

	// Bank
	BankName      string `db:"bank_name" json:"bankName,omitempty"`
	IBAN          string `db:"iban" json:"iban,omitempty"`
	BranchCode    string `db:"branch_code" json:"branchCode,omitempty"`
	AccountNumber string `db:"account_number" json:"accountNumber,omitempty"`

	// Credit card
	CreditLimit types.Money `db:"credit_limit" json:"creditLimit"`
	CutoffDay   int         `db:"cutoff_day" json:"cutoffDay,omitempty"`
	PaymentDay  int         `db:"payment_day" json:"paymentDay,omitempty"`
}

// NewAccount creates an account with zero balance.
func NewAccount(companyID id.ID, name string, typ Type) *Account {
	return &Account{
		BaseEntity: entity.NewBaseEntity(companyID),
		Name:       strings.TrimSpace(name),
		Type:       typ,
		Currency:   DefaultCurrency,
	}
}

// Partner returns the linked partner, if any.
func (a *Account) Partner() (partners.Ref, bool) {
	if a.PartnerKind == nil || a.PartnerID == nil {
		return partners.Ref{}, false
	}
	return partners.Ref{Kind: *a.PartnerKind, ID: *a.PartnerID}, true
}

// LinkPartner links the account to ref.
func (a *Account) LinkPartner(ref partners.Ref) {
	kind := ref.Kind
	a.PartnerKind = &kind
	a.PartnerID = id.Ptr(ref.ID)
}

// Normalize drops type-specific fields that do not apply to the account type.
func (a *Account) Normalize() {
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	if a.Type != TypeBank {
		a.BankName, a.IBAN, a.BranchCode, a.AccountNumber = "", "", "", ""
	}
	if a.Type != TypeCreditCard {
		a.CreditLimit = types.Zero()
		a.CutoffDay, a.PaymentDay = 0, 0
	}
	if a.Type != TypePartner {
		a.PartnerKind, a.PartnerID = nil, nil
	}
}

// Validate implements entity.Validatable.
func (a *Account) Validate(ctx context.Context) error {
	if err := a.ValidateBase(); err != nil {
		return err
	}
	if a.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if !a.Type.Valid() {
		return apperror.NewValidation("invalid account type").WithDetail("type", a.Type)
	}
	if a.Type == TypeCreditCard {
		if a.CreditLimit.IsNegative() {
			return apperror.NewValidation("credit limit cannot be negative").WithDetail("field", "creditLimit")
		}
		if a.CutoffDay < 0 || a.CutoffDay > 31 || a.PaymentDay < 0 || a.PaymentDay > 31 {
			return apperror.NewValidation("statement days must be between 1 and 31")
		}
	}
	if a.Type == TypePartner {
		if _, ok := a.Partner(); !ok {
			return apperror.NewValidation("partner account requires a linked partner")
		}
	}
	return nil
}
