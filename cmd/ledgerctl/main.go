// Package main is ledgerctl, the operator CLI for tally. It migrates the
// schema, reconciles balances on demand and prints reports and history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tally/internal/app"
	"tally/internal/config"
	"tally/internal/infrastructure/storage/postgres"
	"tally/internal/infrastructure/storage/postgres/pgstore"
	"tally/pkg/logger"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator CLI for the tally ledger",
	Long: `ledgerctl manages a tally database: it applies schema migrations,
recomputes cached balances from the ledger and prints reports.

Settings are read from the environment (or a .env file):
  DATABASE_URL       - PostgreSQL connection string (required)
  LOG_LEVEL          - debug, info, warn or error
  BALANCE_TOLERANCE  - largest difference not reported as drift`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs to talk to the database.
type env struct {
	cfg      *config.Config
	pool     *postgres.Pool
	store    *pgstore.Store
	services *app.Services
}

func (e *env) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// connect loads config, sets up logging and opens the pool. When withServices
// is set it also builds the service graph.
func connect(ctx context.Context, withServices bool) (context.Context, *env, error) {
	cfg, err := config.Load()
	if err != nil {
		return ctx, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return ctx, nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development()})
	if err != nil {
		return ctx, nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.SetDefault(log)
	ctx = logger.WithLogger(ctx, log.WithComponent("ledgerctl"))

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, "ledgerctl", cfg.DBMaxConns))
	if err != nil {
		return ctx, nil, err
	}
	e := &env{cfg: cfg, pool: pool}
	if !withServices {
		return ctx, e, nil
	}

	credit, err := cfg.Credit()
	if err != nil {
		e.Close()
		return ctx, nil, fmt.Errorf("credit rule: %w", err)
	}
	if e.store, err = pgstore.New(pool); err != nil {
		e.Close()
		return ctx, nil, err
	}
	e.services = app.New(e.store.Repositories(), app.Options{
		Tolerance:   cfg.BalanceTolerance,
		Credit:      credit,
		Concurrency: cfg.ReconcileConcurrency,
	})
	return ctx, e, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
