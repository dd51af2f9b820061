package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tally/internal/core/id"
	"tally/internal/core/tenant"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute cached balances from the ledger",
	Long: `Recompute cached account and partner balances by replaying live ledger
entries. Differences above BALANCE_TOLERANCE are reported as drift and the
cached value is overwritten.`,
	Example: `  ledgerctl reconcile all
  ledgerctl reconcile company 0190f5c2-...
  ledgerctl reconcile account <company-id> <account-id>
  ledgerctl reconcile partners <company-id>`,
}

var reconcileAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Reconcile every company",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, e, err := connect(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.services.Batch.Run(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

var reconcileCompanyCmd = &cobra.Command{
	Use:   "company <company-id>",
	Short: "Reconcile every account and partner of one company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := parseID("company", args[0])
		if err != nil {
			return err
		}
		ctx, e, err := connect(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.services.Reconciler.RecomputeCompany(tenant.WithCompany(ctx, companyID), companyID)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

var reconcileAccountCmd = &cobra.Command{
	Use:   "account <company-id> <account-id>",
	Short: "Reconcile one account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := parseID("company", args[0])
		if err != nil {
			return err
		}
		accountID, err := parseID("account", args[1])
		if err != nil {
			return err
		}
		ctx, e, err := connect(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.services.Reconciler.RecomputeAccount(tenant.WithCompany(ctx, companyID), companyID, accountID)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var reconcilePartnersCmd = &cobra.Command{
	Use:   "partners <company-id>",
	Short: "Reconcile every customer and supplier of one company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := parseID("company", args[0])
		if err != nil {
			return err
		}
		ctx, e, err := connect(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		results, err := e.services.Reconciler.RecomputeAllPartners(tenant.WithCompany(ctx, companyID), companyID)
		if err != nil {
			return err
		}
		return printJSON(cmd, results)
	},
}

func parseID(what, s string) (id.ID, error) {
	v, err := id.Parse(s)
	if err != nil {
		return id.Nil(), fmt.Errorf("invalid %s id %q: %w", what, s, err)
	}
	return v, nil
}

func init() {
	reconcileCmd.AddCommand(reconcileAllCmd, reconcileCompanyCmd, reconcileAccountCmd, reconcilePartnersCmd)
	rootCmd.AddCommand(reconcileCmd)
}
