package invoices

import corenum "tally/internal/core/numerator"

const (
	// NumeratorStrategy is strict: invoice numbers must not have gaps.
	NumeratorStrategy = corenum.StrategyStrict

	SalePrefix     = "SINV"
	PurchasePrefix = "PINV"

	// MaxDiscounts is the number of cascaded discounts a line may carry.
	MaxDiscounts = 4
)
