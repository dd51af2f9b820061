package reconcile

import (
	"context"

	"tally/internal/core/id"
	"tally/internal/core/tenant"
)

// RecomputeAccountBalance recomputes one account of the company in context.
func (r *Reconciler) RecomputeAccountBalance(ctx context.Context, accountID id.ID) (Result, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return Result{}, err
	}
	return r.RecomputeAccount(ctx, companyID, accountID)
}

// RecomputeAllPartnerBalances recomputes every customer and supplier of the
// company and returns the number of balances that drifted.
func (r *Reconciler) RecomputeAllPartnerBalances(ctx context.Context, companyID id.ID) (int, error) {
	results, err := r.RecomputeAllPartners(ctx, companyID)
	drifted := 0
	for _, res := range results {
		if res.Drifted {
			drifted++
		}
	}
	return drifted, err
}
