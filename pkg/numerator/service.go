// Package numerator provides document auto-numbering backed by the
// sys_sequences table. Sequences are partitioned by company.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"tally/internal/core/id"
	corenum "tally/internal/core/numerator"
	"tally/internal/core/tenant"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for a call, typically the active
// transaction or the pool.
type QuerierFunc func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering functionality.
type Service struct {
	querier QuerierFunc

	// cacheMu protects ranges. Keys include the company so a shared
	// Service never mixes tenants.
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenum.Generator = (*Service)(nil)

// New creates a numerator service with a fixed querier.
func New(querier Querier) *Service {
	return NewWithQuerierFunc(func(context.Context) Querier { return querier })
}

// NewWithQuerierFunc creates a numerator service resolving the querier per call.
func NewWithQuerierFunc(fn QuerierFunc) *Service {
	return &Service{
		querier: fn,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next document number for the company in ctx.
// Pattern: PREFIX-YEAR-XXXXX (e.g., SINV-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg corenum.Config, opts *corenum.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return "", err
	}
	if opts == nil {
		opts = corenum.DefaultOptions()
	}

	key := cfg.Key(period)

	var num int64
	switch opts.Strategy {
	case corenum.StrategyCached:
		num, err = s.getNextCached(ctx, companyID, key, opts)
	default:
		num, err = s.getNextStrict(ctx, companyID, key)
	}
	if err != nil {
		return "", err
	}

	return cfg.Format(period, num), nil
}

// getNextStrict fetches the next number directly from DB using UPSERT + RETURNING.
func (s *Service) getNextStrict(ctx context.Context, companyID id.ID, key string) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (company_id, key, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, companyID, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// getNextCached hands out numbers from a reserved range, reserving a new
// range of RangeSize numbers when the current one is exhausted.
func (s *Service) getNextCached(ctx context.Context, companyID id.ID, key string, opts *corenum.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cacheKey := companyID.String() + ":" + key
	rng, exists := s.ranges[cacheKey]
	if !exists {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		// current_val is the last number handed out, so the reserved
		// range is (newMax-size, newMax].
		var newMax int64
		err := s.querier(ctx).QueryRow(ctx, `
			INSERT INTO sys_sequences (company_id, key, current_val)
			VALUES ($1, $2, $3)
			ON CONFLICT (company_id, key) DO UPDATE SET current_val = sys_sequences.current_val + $3
			RETURNING current_val
		`, companyID, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}
