// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in pkg/numerator (Postgres sequences) and
// infrastructure/storage/memory.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers per company.
type Generator interface {
	// GetNextNumber generates the next document number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., SINV-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}
