// Package partners holds customers and suppliers and their derived balances.
//
// Customer balance > 0 means the customer owes the company (receivable).
// Supplier balance > 0 means the company owes the supplier (payable).
package partners

import (
	"context"
	"fmt"
	"strings"

	"tally/internal/core/apperror"
	"tally/internal/core/entity"
	"tally/internal/core/id"
	"tally/internal/core/types"
)

// Kind distinguishes customers from suppliers.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindSupplier
}

// Ref identifies one partner.
type Ref struct {
	Kind Kind
	ID   id.ID
}

// CustomerRef builds a customer reference.
func CustomerRef(customerID id.ID) Ref { return Ref{Kind: KindCustomer, ID: customerID} }

// SupplierRef builds a supplier reference.
func SupplierRef(supplierID id.ID) Ref { return Ref{Kind: KindSupplier, ID: supplierID} }

func (r Ref) String() string { return fmt.Sprintf("%s:%s", r.Kind, r.ID) }

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.Kind == "" && id.IsNil(r.ID) }

// Partner is a customer or a supplier.
type Partner struct {
	entity.BaseEntity

	Kind        Kind        `db:"kind" json:"kind"`
	Name        string      `db:"name" json:"name"`
	Email       string      `db:"email" json:"email,omitempty"`
	Phone       string      `db:"phone" json:"phone,omitempty"`
	Address     string      `db:"address" json:"address,omitempty"`
	TaxNumber   string      `db:"tax_number" json:"taxNumber,omitempty"`
	CreditLimit types.Money `db:"credit_limit" json:"creditLimit"`
	Currency    string      `db:"currency" json:"currency"`

	// Balance is a cache; the ledger and invoices are authoritative.
	Balance types.Money `db:"balance" json:"balance"`
}

// NewPartner creates a partner with zero balance.
func NewPartner(companyID id.ID, kind Kind, name, email string) *Partner {
	return &Partner{
		BaseEntity: entity.NewBaseEntity(companyID),
		Kind:       kind,
		Name:       name,
		Email:      strings.TrimSpace(strings.ToLower(email)),
		Currency:   "TRY",
	}
}

// Ref returns the partner's reference.
func (p *Partner) Ref() Ref { return Ref{Kind: p.Kind, ID: p.ID} }

// Validate implements entity.Validatable.
func (p *Partner) Validate(ctx context.Context) error {
	if err := p.ValidateBase(); err != nil {
		return err
	}
	if !p.Kind.Valid() {
		return apperror.NewValidation("invalid partner kind").WithDetail("kind", p.Kind)
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.CreditLimit.IsNegative() {
		return apperror.NewValidation("credit limit cannot be negative").WithDetail("field", "creditLimit")
	}
	return nil
}
