// Package tenant carries the company (tenant) scope of a request.
//
// Every ledger entity belongs to exactly one company. Services read the
// company once per call and pass it explicitly into each repository method.
package tenant

import (
	"context"
	"errors"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/tx"
)

// Context keys for tenant-related values.
type ctxKey int

const (
	txManagerKey ctxKey = iota
	companyKey
)

// Errors for context operations.
var (
	ErrNoCompanyInContext = errors.New("company not found in context")
	ErrNoTxManager        = errors.New("transaction manager not found in context")
)

// --- Company ---

// WithCompany stores the company scope in context.
func WithCompany(ctx context.Context, companyID id.ID) context.Context {
	return context.WithValue(ctx, companyKey, companyID)
}

// GetCompanyID returns the company scope or the nil ID.
func GetCompanyID(ctx context.Context) id.ID {
	companyID, _ := ctx.Value(companyKey).(id.ID)
	return companyID
}

// CompanyID returns the company scope, failing with a validation error when
// the call is not scoped.
func CompanyID(ctx context.Context) (id.ID, error) {
	companyID := GetCompanyID(ctx)
	if id.IsNil(companyID) {
		return id.Nil(), apperror.NewValidation("company scope is required").
			WithCause(ErrNoCompanyInContext)
	}
	return companyID, nil
}

// --- TxManager ---

// WithTxManager stores TxManager in context.
func WithTxManager(ctx context.Context, txm tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey, txm)
}

// GetTxManager retrieves TxManager from context.
func GetTxManager(ctx context.Context) (tx.Manager, error) {
	txm, ok := ctx.Value(txManagerKey).(tx.Manager)
	if !ok || txm == nil {
		return nil, ErrNoTxManager
	}
	return txm, nil
}

// MustGetTxManager retrieves TxManager or panics.
// Use in places where missing TxManager is a programming error.
func MustGetTxManager(ctx context.Context) tx.Manager {
	txm, err := GetTxManager(ctx)
	if err != nil {
		panic("TxManager not in context: " + err.Error())
	}
	return txm
}
