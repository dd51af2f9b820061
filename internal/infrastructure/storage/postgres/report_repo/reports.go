// Package report_repo provides the PostgreSQL implementation of
// reports.Repository.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/documents/invoices"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/reports"
	"tally/internal/infrastructure/storage/postgres"
)

// truncUnit maps a grouping to its date_trunc field. Postgres weeks start on
// Monday, matching reports.PeriodStart.
var truncUnit = map[reports.GroupBy]string{
	reports.GroupByDay:   "day",
	reports.GroupByWeek:  "week",
	reports.GroupByMonth: "month",
}

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ReportRepo) querier(ctx context.Context) postgres.Querier {
	return postgres.ResolveTxManager(ctx, r.txm).GetQuerier(ctx)
}

// CashFlow sums live income, expense and transfer entries per period.
func (r *ReportRepo) CashFlow(ctx context.Context, companyID id.ID, filter reports.CashFlowFilter) ([]reports.CashFlowPeriod, error) {
	sql, args, err := cashFlowQuery(r.builder, companyID, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cash flow: %w", err)
	}

	var periods []reports.CashFlowPeriod
	if err := pgxscan.Select(ctx, r.querier(ctx), &periods, sql, args...); err != nil {
		return nil, fmt.Errorf("cash flow report: %w", err)
	}
	for i := range periods {
		periods[i].PeriodStart = periods[i].PeriodStart.UTC()
	}
	return periods, nil
}

func cashFlowQuery(b squirrel.StatementBuilderType, companyID id.ID, filter reports.CashFlowFilter) squirrel.SelectBuilder {
	unit, ok := truncUnit[filter.GroupBy]
	if !ok {
		unit = truncUnit[reports.GroupByMonth]
	}
	bucket := fmt.Sprintf("date_trunc('%s', occurred_at AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'", unit)

	q := b.Select(
		bucket+" AS period_start",
		sumKind("income", ledger.KindIncome),
		sumKind("expense", ledger.KindExpense),
		sumKind("transfer", ledger.KindTransfer),
	).
		From("ledger_entries").
		Where(squirrel.Eq{"company_id": companyID, "cancelled": false}).
		Where(squirrel.Eq{"kind": []ledger.Kind{ledger.KindIncome, ledger.KindExpense, ledger.KindTransfer}}).
		Where(squirrel.GtOrEq{"occurred_at": filter.From}).
		Where(squirrel.Lt{"occurred_at": filter.To})

	if filter.AccountID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"source_account_id": *filter.AccountID},
			squirrel.Eq{"target_account_id": *filter.AccountID},
		})
	}
	return q.GroupBy("1").OrderBy("1")
}

func sumKind(alias string, kind ledger.Kind) string {
	return fmt.Sprintf("COALESCE(SUM(amount) FILTER (WHERE kind = '%s'), 0) AS %s", kind, alias)
}

// InvoiceStats counts invoices (canceled excluded) by type and status.
func (r *ReportRepo) InvoiceStats(ctx context.Context, companyID id.ID) (*reports.InvoiceStats, error) {
	sql, args, err := r.builder.
		Select("type", "status", "COUNT(*) AS n", "COALESCE(SUM(total_amount), 0) AS total").
		From("invoices").
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.NotEq{"status": invoices.StatusCanceled}).
		GroupBy("type", "status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build invoice stats: %w", err)
	}

	var rows []struct {
		Type   string      `db:"type"`
		Status string      `db:"status"`
		N      int64       `db:"n"`
		Total  types.Money `db:"total"`
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("invoice stats: %w", err)
	}

	stats := &reports.InvoiceStats{
		ByType:      make(map[string]int64),
		ByStatus:    make(map[string]int64),
		TotalAmount: types.Zero(),
	}
	for _, row := range rows {
		stats.Count += row.N
		stats.ByType[row.Type] += row.N
		stats.ByStatus[row.Status] += row.N
		stats.TotalAmount = stats.TotalAmount.Add(row.Total)
	}
	return stats, nil
}

// DueBefore returns approved invoices with a remaining amount due on or before until.
func (r *ReportRepo) DueBefore(ctx context.Context, companyID id.ID, until time.Time) ([]reports.DueInvoice, error) {
	sql, args, err := r.builder.
		Select("id", "number", "type", "partner_id", "due_date", "total_amount", "paid_amount").
		From("invoices").
		Where(squirrel.Eq{"company_id": companyID, "status": invoices.StatusApproved}).
		Where(squirrel.NotEq{"due_date": nil}).
		Where(squirrel.LtOrEq{"due_date": until}).
		Where("total_amount > paid_amount").
		OrderBy("due_date", "number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due invoices: %w", err)
	}

	var out []reports.DueInvoice
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("due invoices: %w", err)
	}
	return out, nil
}
