// Package main is the entry point for the tally background worker. It
// reconciles cached balances of every company on a schedule and relays
// outbox events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tally/internal/app"
	"tally/internal/config"
	"tally/internal/infrastructure/storage/postgres"
	"tally/internal/infrastructure/storage/postgres/pgstore"
	"tally/pkg/logger"
)

const (
	statsInterval = 5 * time.Minute
	dlqInterval   = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log.WithComponent("worker"))

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	credit, err := cfg.Credit()
	if err != nil {
		log.Fatalw("invalid credit rule", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, "tally-worker", cfg.DBMaxConns))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	store, err := pgstore.New(pool)
	if err != nil {
		log.Fatalw("failed to build store", "error", err)
	}
	services := app.New(store.Repositories(), app.Options{
		Tolerance:   cfg.BalanceTolerance,
		Credit:      credit,
		Concurrency: cfg.ReconcileConcurrency,
	})

	w := &worker{
		cfg:      cfg,
		services: services,
		pool:     pool,
		relay:    postgres.NewOutboxRelay(pool.Unwrap(), cfg.OutboxBatchSize, postgres.LogHandler()),
	}

	log.Infow("starting tally worker",
		"reconcile_interval", cfg.ReconcileInterval,
		"reconcile_concurrency", cfg.ReconcileConcurrency,
		"outbox_poll_interval", cfg.OutboxPollInterval,
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.runReconcile(ctx)
	}()
	go func() {
		defer wg.Done()
		w.runOutbox(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

type worker struct {
	cfg      *config.Config
	services *app.Services
	pool     *postgres.Pool
	relay    *postgres.OutboxRelay
}

// runReconcile runs a batch immediately and then every ReconcileInterval.
func (w *worker) runReconcile(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReconcileInterval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	w.reconcileOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileOnce(ctx)
		case <-statsTicker.C:
			postgres.LogPoolStats(ctx, w.pool.Unwrap())
		}
	}
}

func (w *worker) reconcileOnce(ctx context.Context) {
	report, err := w.services.Batch.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error(ctx, "reconcile batch failed", "error", err)
		}
		return
	}
	if n := report.DriftCount(); n > 0 {
		logger.Warn(ctx, "balance drift corrected", "drifted", n, "companies", len(report.Companies))
	}
}

// runOutbox relays pending events every OutboxPollInterval. A full batch is
// followed immediately by the next one.
func (w *worker) runOutbox(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.OutboxPollInterval)
	defer ticker.Stop()

	dlqTicker := time.NewTicker(dlqInterval)
	defer dlqTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := w.relay.ProcessBatch(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Error(ctx, "outbox relay failed", "error", err)
					}
					break
				}
				if n > 0 {
					logger.Debug(ctx, "processed outbox batch", "count", n)
				}
				if n < w.cfg.OutboxBatchSize {
					break
				}
			}
		case <-dlqTicker.C:
			moved, err := w.relay.MoveToDLQ(ctx)
			if err != nil {
				logger.Error(ctx, "move failed outbox messages", "error", err)
				continue
			}
			if moved > 0 {
				logger.Warn(ctx, "moved outbox messages to dead letter queue", "count", moved)
			}
		}
	}
}
