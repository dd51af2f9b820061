package partners

import (
	"context"

	"tally/internal/core/security"
	"tally/internal/core/types"
)

// CreditCheck evaluates the configured credit rule for a customer taking on
// amount of new receivable.
func CreditCheck(ctx context.Context, rule *security.CreditRule, p *Partner, amount types.Money) error {
	if rule == nil || p == nil {
		return nil
	}
	return rule.Check(ctx, security.CreditInput{
		PartnerID: p.ID.String(),
		Balance:   p.Balance,
		Limit:     p.CreditLimit,
		Amount:    amount,
	})
}
