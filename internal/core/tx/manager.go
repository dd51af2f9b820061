// Package tx provides the unit-of-work abstraction used by every
// multi-document mutation (stock + ledger + balance + status).
package tx

import (
	"context"
)

// Manager runs a function as one atomic unit of work.
//
// Domain services depend on this interface. Implementations live in
// infrastructure/storage/postgres and infrastructure/storage/memory.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, every write made through ctx is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Reports use it to read a consistent snapshot.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
