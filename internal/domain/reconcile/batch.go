package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appctx "tally/internal/core/context"
	"tally/internal/core/id"
	"tally/internal/core/tenant"
	"tally/pkg/logger"
)

// Companies lists every company with ledger data.
type Companies interface {
	ListCompanies(ctx context.Context) ([]id.ID, error)
}

// BatchReport summarizes one run over all companies.
type BatchReport struct {
	StartedAt time.Time         `json:"startedAt"`
	Duration  time.Duration     `json:"duration"`
	Companies []Report          `json:"companies"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// DriftCount returns the number of drifted balances across companies.
func (b BatchReport) DriftCount() int {
	n := 0
	for _, r := range b.Companies {
		n += len(r.Drifted)
	}
	return n
}

// Batch recomputes every company. One company's failure is logged and
// recorded; the others still run.
type Batch struct {
	reconciler  *Reconciler
	companies   Companies
	concurrency int
}

// NewBatch creates a batch job running at most concurrency companies at once.
func NewBatch(reconciler *Reconciler, companies Companies, concurrency int) *Batch {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batch{
		reconciler:  reconciler,
		companies:   companies,
		concurrency: concurrency,
	}
}

// Run executes one pass.
func (b *Batch) Run(ctx context.Context) (BatchReport, error) {
	report := BatchReport{StartedAt: time.Now().UTC()}

	companyIDs, err := b.companies.ListCompanies(ctx)
	if err != nil {
		return report, fmt.Errorf("list companies: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, companyID := range companyIDs {
		g.Go(func() error {
			cctx := tenant.WithCompany(gctx, companyID)
			cctx = appctx.WithTrace(cctx, appctx.NewTraceContext(cctx))
			res, err := b.reconciler.RecomputeCompany(cctx, companyID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error(cctx, "company reconcile failed", "company_id", companyID, "error", err)
				if report.Failed == nil {
					report.Failed = make(map[string]string)
				}
				report.Failed[companyID.String()] = err.Error()
				return nil
			}
			report.Companies = append(report.Companies, res)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.StartedAt)
	logger.Info(ctx, "reconcile batch finished",
		"companies", len(companyIDs),
		"failed", len(report.Failed),
		"drifted", report.DriftCount(),
		"duration", report.Duration,
	)
	return report, ctx.Err()
}
