package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrappedChain(t *testing.T) {
	base := NewInsufficientFunds("acc-1", "500", "100")
	wrapped := fmt.Errorf("pay invoice: %w", base)

	assert.True(t, IsInsufficientFunds(wrapped))
	assert.False(t, IsInsufficientStock(wrapped))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(wrapped))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "acc-1", appErr.Details["account_id"])
}

func TestNewInsufficientStock_NamesProduct(t *testing.T) {
	err := NewInsufficientStock("p-1", "Widget", "150.0000", "100.0000")

	assert.Equal(t, "Insufficient stock: Widget", err.Message)
	assert.Equal(t, "Widget", err.Details["product"])
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(NewValidation("bad")))
	assert.True(t, IsBusinessError(NewInvalidStateTransition("invoice", "1", "approved", "approve")))
	assert.False(t, IsBusinessError(NewInternal(errors.New("boom"))))
	assert.False(t, IsBusinessError(errors.New("plain")))
}

func TestWithCause_Unwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(nil).WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
