package postgres

import (
	"context"
	"fmt"

	"tally/internal/core/tenant"
)

// MustGetTxManager returns the *postgres.TxManager stored in context.
// It is meant for infrastructure code that needs GetQuerier()/GetTx().
//
// Domain code should depend only on internal/core/tx.Manager.
func MustGetTxManager(ctx context.Context) *TxManager {
	txm := tenant.MustGetTxManager(ctx)
	postgresTxm, ok := txm.(*TxManager)
	if !ok || postgresTxm == nil {
		panic(fmt.Sprintf("TxManager in context has unexpected type: %T", txm))
	}
	return postgresTxm
}

// ResolveTxManager prefers a manager scoped on ctx and falls back to def.
func ResolveTxManager(ctx context.Context, def *TxManager) *TxManager {
	if txm, err := tenant.GetTxManager(ctx); err == nil {
		if pg, ok := txm.(*TxManager); ok && pg != nil {
			return pg
		}
	}
	if def == nil {
		return MustGetTxManager(ctx)
	}
	return def
}
