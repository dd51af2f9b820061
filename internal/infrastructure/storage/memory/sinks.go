package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	corenum "tally/internal/core/numerator"
	"tally/internal/core/tenant"
	"tally/internal/domain/audit"
	"tally/internal/domain/events"
)

// Outbox stores published events with the transaction that produced them.
type Outbox struct{ s *Store }

var _ events.Publisher = (*Outbox)(nil)

func (o *Outbox) Publish(_ context.Context, event events.Event) error {
	st, unlock := o.s.write()
	defer unlock()

	st.outbox = append(st.outbox, event)
	return nil
}

// Events returns every committed event in publish order.
func (o *Outbox) Events() []events.Event {
	st, unlock := o.s.read()
	defer unlock()
	return slices.Clone(st.outbox)
}

// AuditLog stores audit records with the transaction that produced them.
type AuditLog struct{ s *Store }

var _ audit.Recorder = (*AuditLog)(nil)

func (a *AuditLog) Record(ctx context.Context, rec audit.Record) error {
	rec = audit.Enrich(ctx, rec)

	st, unlock := a.s.write()
	defer unlock()

	st.audit = append(st.audit, rec)
	return nil
}

// Records returns every committed audit record.
func (a *AuditLog) Records() []audit.Record {
	st, unlock := a.s.read()
	defer unlock()
	return slices.Clone(st.audit)
}

// Numerator hands out gapless numbers per company and sequence key. Both
// strategies behave as strict; a rolled-back transaction returns its number.
type Numerator struct{ s *Store }

var _ corenum.Generator = (*Numerator)(nil)

func (n *Numerator) GetNextNumber(ctx context.Context, cfg corenum.Config, _ *corenum.Options, period time.Time) (string, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return "", err
	}

	st, unlock := n.s.write()
	defer unlock()

	key := fmt.Sprintf("%s:%s", companyID, cfg.Key(period))
	st.sequences[key]++
	return cfg.Format(period, st.sequences[key]), nil
}
