// Package reports provides read-only summaries over the ledger and invoices.
package reports

import (
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
)

// GroupBy selects the cash-flow bucket size.
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

// ParseGroupBy validates a grouping name. Empty means month.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case "":
		return GroupByMonth, nil
	case GroupByDay, GroupByWeek, GroupByMonth:
		return GroupBy(s), nil
	}
	return "", apperror.NewValidation("groupBy must be day, week or month").WithDetail("groupBy", s)
}

// PeriodStart truncates t (in UTC) to the start of its bucket. Weeks start on Monday.
func PeriodStart(t time.Time, g GroupBy) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case GroupByDay:
		return day
	case GroupByWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// --- Cash Flow ---

// CashFlowFilter defines filter for the cash-flow report.
type CashFlowFilter struct {
	From      time.Time
	To        time.Time
	GroupBy   GroupBy
	AccountID *id.ID
}

// CashFlowPeriod is one bucket of the cash-flow report.
type CashFlowPeriod struct {
	PeriodStart time.Time   `db:"period_start" json:"periodStart"`
	Income      types.Money `db:"income" json:"income"`
	Expense     types.Money `db:"expense" json:"expense"`
	Transfer    types.Money `db:"transfer" json:"transfer"`
}

// Net is income minus expense.
func (p CashFlowPeriod) Net() types.Money { return p.Income.Sub(p.Expense) }

// CashFlowReport represents the full cash-flow report.
type CashFlowReport struct {
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	GroupBy GroupBy          `json:"groupBy"`
	Periods []CashFlowPeriod `json:"periods"`

	// Summary
	TotalIncome  types.Money `json:"totalIncome"`
	TotalExpense types.Money `json:"totalExpense"`
	Net          types.Money `json:"net"`
}

// --- Invoice statistics ---

// InvoiceStats counts invoices by type and status.
type InvoiceStats struct {
	Count       int64            `json:"count"`
	ByType      map[string]int64 `json:"byType"`
	ByStatus    map[string]int64 `json:"byStatus"`
	TotalAmount types.Money      `json:"totalAmount"`
}

// --- Due soon ---

// DueInvoice is an approved, unpaid invoice with a due date.
type DueInvoice struct {
	ID          id.ID       `db:"id" json:"id"`
	Number      string      `db:"number" json:"number"`
	Type        string      `db:"type" json:"type"`
	PartnerID   id.ID       `db:"partner_id" json:"partnerId"`
	DueDate     time.Time   `db:"due_date" json:"dueDate"`
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	PaidAmount  types.Money `db:"paid_amount" json:"paidAmount"`
}

// Remaining is the unpaid part.
func (d DueInvoice) Remaining() types.Money { return d.TotalAmount.Sub(d.PaidAmount) }
