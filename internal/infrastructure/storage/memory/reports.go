package memory

import (
	"context"
	"slices"
	"time"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/documents/invoices"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/reports"
)

type reportRepo struct{ s *Store }

func (r reportRepo) CashFlow(_ context.Context, companyID id.ID, filter reports.CashFlowFilter) ([]reports.CashFlowPeriod, error) {
	st, unlock := r.s.read()
	defer unlock()

	buckets := make(map[time.Time]*reports.CashFlowPeriod)
	for i := range st.entries {
		e := &st.entries[i]
		if e.CompanyID != companyID || e.Cancelled {
			continue
		}
		if e.OccurredAt.Before(filter.From) || !e.OccurredAt.Before(filter.To) {
			continue
		}
		if filter.AccountID != nil &&
			!id.Equal(e.SourceAccountID, *filter.AccountID) && !id.Equal(e.TargetAccountID, *filter.AccountID) {
			continue
		}

		start := reports.PeriodStart(e.OccurredAt, filter.GroupBy)
		p, ok := buckets[start]
		if !ok {
			p = &reports.CashFlowPeriod{
				PeriodStart: start,
				Income:      types.Zero(),
				Expense:     types.Zero(),
				Transfer:    types.Zero(),
			}
			buckets[start] = p
		}
		switch e.Kind {
		case ledger.KindIncome:
			p.Income = p.Income.Add(e.Amount)
		case ledger.KindExpense:
			p.Expense = p.Expense.Add(e.Amount)
		case ledger.KindTransfer:
			p.Transfer = p.Transfer.Add(e.Amount)
		}
	}

	out := make([]reports.CashFlowPeriod, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b reports.CashFlowPeriod) int {
		return a.PeriodStart.Compare(b.PeriodStart)
	})
	return out, nil
}

func (r reportRepo) InvoiceStats(_ context.Context, companyID id.ID) (*reports.InvoiceStats, error) {
	st, unlock := r.s.read()
	defer unlock()

	stats := &reports.InvoiceStats{
		ByType:      make(map[string]int64),
		ByStatus:    make(map[string]int64),
		TotalAmount: types.Zero(),
	}
	for _, inv := range st.invoices {
		if !inv.BelongsTo(companyID) || inv.Status == invoices.StatusCanceled {
			continue
		}
		stats.Count++
		stats.ByType[string(inv.Type)]++
		stats.ByStatus[string(inv.Status)]++
		stats.TotalAmount = stats.TotalAmount.Add(inv.TotalAmount)
	}
	return stats, nil
}

func (r reportRepo) DueBefore(_ context.Context, companyID id.ID, until time.Time) ([]reports.DueInvoice, error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []reports.DueInvoice
	for _, inv := range st.invoices {
		if !inv.BelongsTo(companyID) || inv.Status != invoices.StatusApproved || inv.DueDate == nil {
			continue
		}
		if inv.DueDate.After(until) || !inv.Remaining().IsPositive() {
			continue
		}
		out = append(out, reports.DueInvoice{
			ID:          inv.ID,
			Number:      inv.Number,
			Type:        string(inv.Type),
			PartnerID:   inv.PartnerID,
			DueDate:     *inv.DueDate,
			TotalAmount: inv.TotalAmount,
			PaidAmount:  inv.PaidAmount,
		})
	}
	slices.SortFunc(out, func(a, b reports.DueInvoice) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return out, nil
}
