package reports

import (
	"context"
	"fmt"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/tenant"
	"tally/internal/core/tx"
	"tally/internal/core/types"
)

// DefaultDueWindow is how far ahead DueSoon looks.
const DefaultDueWindow = 3 * 24 * time.Hour

// Service provides report generation operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new reports service. txManager may be nil; when it
// supports read-only transactions, reports read a consistent snapshot.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}

// CashFlow generates the cash-flow report. The period defaults to the last
// 30 days; To is exclusive.
func (s *Service) CashFlow(ctx context.Context, filter CashFlowFilter) (*CashFlowReport, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	if filter.To.IsZero() {
		filter.To = time.Now().UTC()
	}
	if filter.From.IsZero() {
		filter.From = filter.To.AddDate(0, 0, -30)
	}
	if !filter.From.Before(filter.To) {
		return nil, apperror.NewValidation("from must be before to")
	}
	if filter.GroupBy, err = ParseGroupBy(string(filter.GroupBy)); err != nil {
		return nil, err
	}

	report := &CashFlowReport{
		From:         filter.From,
		To:           filter.To,
		GroupBy:      filter.GroupBy,
		TotalIncome:  types.Zero(),
		TotalExpense: types.Zero(),
	}
	err = s.read(ctx, func(ctx context.Context) error {
		periods, err := s.repo.CashFlow(ctx, companyID, filter)
		if err != nil {
			return fmt.Errorf("get cash flow: %w", err)
		}
		report.Periods = periods
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range report.Periods {
		report.TotalIncome = report.TotalIncome.Add(p.Income)
		report.TotalExpense = report.TotalExpense.Add(p.Expense)
	}
	report.Net = report.TotalIncome.Sub(report.TotalExpense)
	return report, nil
}

// InvoiceStats counts the company's invoices.
func (s *Service) InvoiceStats(ctx context.Context) (*InvoiceStats, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	var stats *InvoiceStats
	err = s.read(ctx, func(ctx context.Context) error {
		stats, err = s.repo.InvoiceStats(ctx, companyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get invoice stats: %w", err)
	}
	return stats, nil
}

// DueSoon lists unpaid approved invoices due within window (default 3 days),
// overdue ones included.
func (s *Service) DueSoon(ctx context.Context, window time.Duration) ([]DueInvoice, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultDueWindow
	}
	var due []DueInvoice
	err = s.read(ctx, func(ctx context.Context) error {
		due, err = s.repo.DueBefore(ctx, companyID, time.Now().UTC().Add(window))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get due invoices: %w", err)
	}
	return due, nil
}
