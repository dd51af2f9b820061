package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/internal/core/tenant"
)

func TestResolveTxManager(t *testing.T) {
	def := &TxManager{}
	scoped := &TxManager{}

	assert.Same(t, def, ResolveTxManager(context.Background(), def))

	ctx := tenant.WithTxManager(context.Background(), scoped)
	assert.Same(t, scoped, ResolveTxManager(ctx, def))
	assert.Same(t, scoped, MustGetTxManager(ctx))

	assert.Panics(t, func() { ResolveTxManager(context.Background(), nil) })
}
