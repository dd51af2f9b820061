package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tally/internal/core/tenant"
	"tally/internal/domain/registers/stock"
)

var auditCmd = &cobra.Command{
	Use:   "audit <company-id> <entity-type> <entity-id>",
	Short: "Print the audit trail of an entity, newest first",
	Example: `  ledgerctl audit <company-id> invoice <invoice-id>
  ledgerctl audit <company-id> account <account-id> --limit 10`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := parseID("company", args[0])
		if err != nil {
			return err
		}
		entityID, err := parseID(args[1], args[2])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, e, err := connect(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := e.store.Audit().GetEntityHistory(ctx, companyID, args[1], entityID, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, entries)
	},
}

var movementsCmd = &cobra.Command{
	Use:   "movements <company-id> <product-id>",
	Short: "Print the stock movement history of a product, newest first",
	Args:  cobra.ExactArgs(2),
	RunE:  runMovements,
}

func init() {
	rootCmd.AddCommand(auditCmd, movementsCmd)

	auditCmd.Flags().Int("limit", 50, "Maximum number of records")

	movementsCmd.Flags().String("direction", "", "Only in or out movements")
	movementsCmd.Flags().String("from", "", "Start date, inclusive (YYYY-MM-DD)")
	movementsCmd.Flags().String("to", "", "End date, inclusive (YYYY-MM-DD)")
	movementsCmd.Flags().Int("limit", 100, "Maximum number of movements")
}

func runMovements(cmd *cobra.Command, args []string) error {
	companyID, err := parseID("company", args[0])
	if err != nil {
		return err
	}
	productID, err := parseID("product", args[1])
	if err != nil {
		return err
	}

	filter, err := movementFilter(cmd)
	if err != nil {
		return err
	}

	ctx, e, err := connect(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	movements, err := e.services.Recorder.History(tenant.WithCompany(ctx, companyID), companyID, productID, filter)
	if err != nil {
		return err
	}
	return printJSON(cmd, movements)
}

func movementFilter(cmd *cobra.Command) (stock.MovementFilter, error) {
	var filter stock.MovementFilter
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	if dir, _ := cmd.Flags().GetString("direction"); dir != "" {
		d := stock.Direction(dir)
		if d != stock.DirectionIn && d != stock.DirectionOut {
			return filter, fmt.Errorf("invalid --direction %q, use in or out", dir)
		}
		filter.Direction = &d
	}
	for flag, dst := range map[string]**time.Time{"from": &filter.FromDate, "to": &filter.ToDate} {
		s, _ := cmd.Flags().GetString(flag)
		t, err := parseDate(flag, s)
		if err != nil {
			return filter, err
		}
		if !t.IsZero() {
			*dst = &t
		}
	}
	return filter, nil
}
