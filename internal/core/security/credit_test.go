package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "tally/internal/core/context"
	"tally/internal/core/apperror"
	"tally/internal/core/types"
)

func TestCreditRule_Default(t *testing.T) {
	rule := MustCreditRule("", CreditModeBlock)
	ctx := context.Background()

	cases := []struct {
		name    string
		balance string
		limit   string
		amount  string
		blocked bool
	}{
		{"no limit", "1000", "0", "500", false},
		{"within limit", "100", "1000", "500", false},
		{"exactly at limit", "500", "1000", "500", false},
		{"over limit", "600", "1000", "500", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := rule.Check(ctx, CreditInput{
				Balance: types.MustMoney(tc.balance),
				Limit:   types.MustMoney(tc.limit),
				Amount:  types.MustMoney(tc.amount),
			})
			if tc.blocked {
				assert.True(t, apperror.HasCode(err, apperror.CodeCreditLimitExceeded))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreditRule_WarnModeDoesNotBlock(t *testing.T) {
	rule := MustCreditRule("", CreditModeWarn)
	err := rule.Check(context.Background(), CreditInput{
		Balance: types.MustMoney("900"),
		Limit:   types.MustMoney("1000"),
		Amount:  types.MustMoney("500"),
	})
	assert.NoError(t, err)
}

func TestCreditRule_CustomExpression(t *testing.T) {
	rule, err := NewCreditRule("amount > 250.0", CreditModeBlock)
	require.NoError(t, err)

	exceeded, err := rule.Exceeded(context.Background(), CreditInput{Amount: types.MustMoney("300")})
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestCreditRule_Invalid(t *testing.T) {
	_, err := NewCreditRule("balance +", CreditModeBlock)
	assert.Error(t, err)

	_, err = NewCreditRule("balance + amount", CreditModeBlock)
	assert.Error(t, err, "non-bool expression must be rejected")

	_, err = NewCreditRule("", CreditMode("maybe"))
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	ctx := context.Background()
	assert.True(t, apperror.HasCode(RequireAdmin(ctx, "cancel invoices"), apperror.CodeForbidden))

	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "u1", Roles: []string{appctx.RoleAdmin}})
	assert.NoError(t, RequireAdmin(ctx, "cancel invoices"))
}
