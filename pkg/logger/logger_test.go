package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "tally/internal/core/context"
	"tally/internal/core/id"
	"tally/internal/core/tenant"
)

func TestFromContext_AddsScopeFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := &Logger{zap.New(core).Sugar()}

	companyID := id.New()
	ctx := tenant.WithCompany(context.Background(), companyID)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-42"})
	ctx = WithLogger(ctx, base)

	Info(ctx, "invoice approved", "invoice_id", "inv-1")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, companyID.String(), fields["company_id"])
	assert.Equal(t, "u-42", fields["user_id"])
	assert.Equal(t, "inv-1", fields["invoice_id"])
}

func TestFromContext_NoScope(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := WithLogger(context.Background(), &Logger{zap.New(core).Sugar()})

	Debug(ctx, "batch tick")

	require.Equal(t, 1, logs.Len())
	_, hasCompany := logs.All()[0].ContextMap()["company_id"]
	assert.False(t, hasCompany)
}
