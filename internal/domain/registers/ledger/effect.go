package ledger

import (
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
)

// AccountEffect returns the signed change e applies to accountID's balance.
// Both the posting engine and the reconciler use it, so the incremental
// cache and a full replay agree by construction.
func AccountEffect(e Entry, accountID id.ID) types.Money {
	delta := types.Zero()
	if e.Cancelled {
		return delta
	}
	switch e.Kind {
	case KindIncome:
		if id.Equal(e.TargetAccountID, accountID) {
			delta = delta.Add(e.Amount)
		}
	case KindExpense:
		if id.Equal(e.SourceAccountID, accountID) {
			delta = delta.Sub(e.Amount)
		}
	case KindTransfer:
		if id.Equal(e.SourceAccountID, accountID) {
			delta = delta.Sub(e.Amount)
		}
		if id.Equal(e.TargetAccountID, accountID) {
			delta = delta.Add(e.Amount)
		}
	}
	return delta
}

// PartnerEffect returns the signed change e applies to the partner's balance.
// Positive means the customer owes more, or the company owes the supplier more.
func PartnerEffect(e Entry, ref partners.Ref) types.Money {
	delta := types.Zero()
	if e.Cancelled {
		return delta
	}
	isCustomer := ref.Kind == partners.KindCustomer && id.Equal(e.CustomerID, ref.ID)
	isSupplier := ref.Kind == partners.KindSupplier && id.Equal(e.SupplierID, ref.ID)

	switch e.Kind {
	case KindInvoiceAccrual:
		if isCustomer || isSupplier {
			delta = delta.Add(e.Amount)
		}
	case KindReceivableAdjustment:
		if isCustomer {
			delta = delta.Add(e.Amount)
		}
	case KindIncome:
		if isCustomer {
			delta = delta.Sub(e.Amount)
		}
	case KindExpense:
		if isSupplier {
			delta = delta.Sub(e.Amount)
		}
	}
	return delta
}

// Deltas groups the non-zero effects of entries by account and partner.
func Deltas(entries []Entry) (map[id.ID]types.Money, map[partners.Ref]types.Money) {
	accounts := make(map[id.ID]types.Money)
	parts := make(map[partners.Ref]types.Money)
	for _, e := range entries {
		for _, accountID := range e.Accounts() {
			if d := AccountEffect(e, accountID); !d.IsZero() {
				accounts[accountID] = accounts[accountID].Add(d)
			}
		}
		if ref, ok := e.Partner(); ok {
			if d := PartnerEffect(e, ref); !d.IsZero() {
				parts[ref] = parts[ref].Add(d)
			}
		}
	}
	return accounts, parts
}

// Affected collects every account and partner referenced by entries,
// regardless of cancellation.
func Affected(entries []Entry) ([]id.ID, []partners.Ref) {
	seenAcc := make(map[id.ID]bool)
	seenRef := make(map[partners.Ref]bool)
	var accounts []id.ID
	var refs []partners.Ref
	for _, e := range entries {
		for _, accountID := range e.Accounts() {
			if !seenAcc[accountID] {
				seenAcc[accountID] = true
				accounts = append(accounts, accountID)
			}
		}
		if ref, ok := e.Partner(); ok && !seenRef[ref] {
			seenRef[ref] = true
			refs = append(refs, ref)
		}
	}
	return accounts, refs
}
