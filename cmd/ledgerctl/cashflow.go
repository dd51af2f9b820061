package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tally/internal/core/tenant"
	"tally/internal/domain/reports"
)

const dateLayout = "2006-01-02"

var cashflowCmd = &cobra.Command{
	Use:   "cashflow <company-id>",
	Short: "Print income, expense and transfers per period",
	Example: `  # Last 30 days by month
  ledgerctl cashflow <company-id>

  # Weekly buckets for the first quarter
  ledgerctl cashflow <company-id> --from 2026-01-01 --to 2026-04-01 --group-by week`,
	Args: cobra.ExactArgs(1),
	RunE: runCashflow,
}

func init() {
	rootCmd.AddCommand(cashflowCmd)

	cashflowCmd.Flags().String("from", "", "Start date, inclusive (YYYY-MM-DD, default: 30 days before --to)")
	cashflowCmd.Flags().String("to", "", "End date, exclusive (YYYY-MM-DD, default: now)")
	cashflowCmd.Flags().String("group-by", "month", "Bucket size: day, week or month")
}

func runCashflow(cmd *cobra.Command, args []string) error {
	companyID, err := parseID("company", args[0])
	if err != nil {
		return err
	}

	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	groupBy, _ := cmd.Flags().GetString("group-by")

	filter := reports.CashFlowFilter{GroupBy: reports.GroupBy(groupBy)}
	if filter.From, err = parseDate("from", fromStr); err != nil {
		return err
	}
	if filter.To, err = parseDate("to", toStr); err != nil {
		return err
	}

	ctx, e, err := connect(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.services.Reports.CashFlow(tenant.WithCompany(ctx, companyID), filter)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

// parseDate returns the zero time for an empty value.
func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date, use YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}
