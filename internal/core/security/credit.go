// Package security holds authorization guards and configurable business
// rules evaluated before money is put at risk.
package security

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"

	"tally/internal/core/apperror"
	"tally/internal/core/types"
	"tally/pkg/logger"
)

// DefaultCreditExpression blocks when a positive limit would be exceeded.
const DefaultCreditExpression = "limit > 0.0 && balance + amount > limit"

// CreditMode selects what happens when the rule fires.
type CreditMode string

const (
	CreditModeBlock CreditMode = "block"
	CreditModeWarn  CreditMode = "warn"
)

// CreditInput is the state the rule is evaluated against.
type CreditInput struct {
	PartnerID string
	Balance   types.Money
	Limit     types.Money
	Amount    types.Money
}

// CreditRule is a compiled CEL expression over balance, limit and amount.
// The expression returns true when the credit limit is exceeded.
type CreditRule struct {
	expr string
	mode CreditMode
	prg  cel.Program
}

// NewCreditRule compiles expr. An empty expr uses DefaultCreditExpression.
func NewCreditRule(expr string, mode CreditMode) (*CreditRule, error) {
	if expr == "" {
		expr = DefaultCreditExpression
	}
	switch mode {
	case "":
		mode = CreditModeBlock
	case CreditModeBlock, CreditModeWarn:
	default:
		return nil, fmt.Errorf("unknown credit mode %q", mode)
	}

	env, err := cel.NewEnv(
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("limit", cel.DoubleType),
		cel.Variable("amount", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile credit rule: %w", iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("credit rule must return bool, got %v", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build credit rule program: %w", err)
	}

	return &CreditRule{expr: expr, mode: mode, prg: prg}, nil
}

// MustCreditRule is NewCreditRule for constants and tests.
func MustCreditRule(expr string, mode CreditMode) *CreditRule {
	r, err := NewCreditRule(expr, mode)
	if err != nil {
		panic(err)
	}
	return r
}

// Exceeded evaluates the expression.
func (r *CreditRule) Exceeded(ctx context.Context, in CreditInput) (bool, error) {
	out, _, err := r.prg.ContextEval(ctx, map[string]any{
		"balance": in.Balance.InexactFloat64(),
		"limit":   in.Limit.InexactFloat64(),
		"amount":  in.Amount.InexactFloat64(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate credit rule: %w", err)
	}
	exceeded, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("credit rule returned %T", out.Value())
	}
	return exceeded, nil
}

// Check returns CREDIT_LIMIT_EXCEEDED in block mode; in warn mode the breach
// is logged and the operation proceeds.
func (r *CreditRule) Check(ctx context.Context, in CreditInput) error {
	if r == nil {
		return nil
	}
	exceeded, err := r.Exceeded(ctx, in)
	if err != nil {
		return err
	}
	if !exceeded {
		return nil
	}

	projected := in.Balance.Add(in.Amount)
	if r.mode == CreditModeWarn {
		logger.Warn(ctx, "credit limit exceeded",
			"partner_id", in.PartnerID,
			"limit", in.Limit.String(),
			"projected", projected.String(),
		)
		return nil
	}

	return apperror.NewBusinessRule(apperror.CodeCreditLimitExceeded, "Credit limit would be exceeded").
		WithDetail("partner_id", in.PartnerID).
		WithDetail("limit", in.Limit.String()).
		WithDetail("balance", in.Balance.String()).
		WithDetail("projected", projected.String())
}

// Mode returns the configured mode.
func (r *CreditRule) Mode() CreditMode { return r.mode }
