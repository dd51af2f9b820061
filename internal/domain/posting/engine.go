// Package posting applies the effects of a lifecycle operation: stock
// movements, ledger entries and the incremental balance cache updates that
// follow from them.
package posting

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/reconcile"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
	"tally/pkg/logger"
)

// AccountBalances adjusts cached account balances.
type AccountBalances interface {
	AdjustBalance(ctx context.Context, companyID, accountID id.ID, delta types.Money) error
}

// PartnerBalances adjusts cached partner balances.
type PartnerBalances interface {
	AdjustBalance(ctx context.Context, companyID id.ID, ref partners.Ref, delta types.Money) error
}

// Set is everything one operation posts.
type Set struct {
	Entries   []ledger.Entry
	Movements []stock.Request
}

// Empty reports whether the set posts nothing.
func (s Set) Empty() bool { return len(s.Entries) == 0 && len(s.Movements) == 0 }

// Result of a post.
type Result struct {
	Entries   []ledger.Entry
	Movements []stock.Movement
}

// Engine posts and reverses effect sets. It must be called inside a unit of
// work; a failure at any step leaves the caller to roll back.
type Engine struct {
	recorder   *stock.Recorder
	ledger     ledger.Repository
	accounts   AccountBalances
	partners   PartnerBalances
	reconciler *reconcile.Reconciler
	tracer     trace.Tracer
}

// NewEngine creates a posting engine.
func NewEngine(
	recorder *stock.Recorder,
	ledgerRepo ledger.Repository,
	accounts AccountBalances,
	partners PartnerBalances,
	reconciler *reconcile.Reconciler,
) *Engine {
	return &Engine{
		recorder:   recorder,
		ledger:     ledgerRepo,
		accounts:   accounts,
		partners:   partners,
		reconciler: reconciler,
		tracer:     otel.Tracer("tally/posting"),
	}
}

// Post applies stock requests, appends entries and adjusts exactly the
// account and partner balances the entries reference.
func (e *Engine) Post(ctx context.Context, companyID id.ID, set Set) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "posting.Post",
		trace.WithAttributes(
			attribute.Int("entries", len(set.Entries)),
			attribute.Int("movements", len(set.Movements)),
		))
	defer span.End()

	var res Result
	for i := range set.Entries {
		if set.Entries[i].CompanyID != companyID {
			return res, fmt.Errorf("entry %d belongs to another company", i)
		}
		if err := set.Entries[i].Validate(ctx); err != nil {
			return res, err
		}
	}

	movements, err := e.recorder.Apply(ctx, companyID, set.Movements)
	if err != nil {
		return res, err
	}
	res.Movements = movements

	if len(set.Entries) > 0 {
		if err := e.ledger.Append(ctx, set.Entries); err != nil {
			return res, fmt.Errorf("append entries: %w", err)
		}
	}
	res.Entries = set.Entries

	if err := e.applyDeltas(ctx, companyID, set.Entries, false); err != nil {
		span.RecordError(err)
		return res, err
	}
	return res, nil
}

// Reverse takes back the balance effects of entries the caller has just
// cancelled, then replays every referenced account and partner, plus any
// partner in also, through the reconciler so the caches match the remaining
// history.
func (e *Engine) Reverse(ctx context.Context, companyID id.ID, cancelled []ledger.Entry, also ...partners.Ref) error {
	ctx, span := e.tracer.Start(ctx, "posting.Reverse",
		trace.WithAttributes(attribute.Int("entries", len(cancelled))))
	defer span.End()

	if err := e.applyDeltas(ctx, companyID, cancelled, true); err != nil {
		span.RecordError(err)
		return err
	}
	accountIDs, refs := ledger.Affected(cancelled)
	for _, ref := range also {
		if !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	}
	if err := e.Recompute(ctx, companyID, accountIDs, refs); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Replace swaps the balance effects of before for those of after (an entry
// edited in place) and replays every account and partner either touches.
func (e *Engine) Replace(ctx context.Context, companyID id.ID, before, after ledger.Entry) error {
	ctx, span := e.tracer.Start(ctx, "posting.Replace")
	defer span.End()

	if err := e.applyDeltas(ctx, companyID, []ledger.Entry{before}, true); err != nil {
		span.RecordError(err)
		return err
	}
	if err := e.applyDeltas(ctx, companyID, []ledger.Entry{after}, false); err != nil {
		span.RecordError(err)
		return err
	}
	accountIDs, refs := ledger.Affected([]ledger.Entry{before, after})
	return e.Recompute(ctx, companyID, accountIDs, refs)
}

// Recompute replays the given accounts and partners.
func (e *Engine) Recompute(ctx context.Context, companyID id.ID, accountIDs []id.ID, refs []partners.Ref) error {
	return e.reconciler.RecomputeAffected(ctx, companyID, accountIDs, refs)
}

// applyDeltas adjusts caches by the entries' effects, negated when undo is
// set. Cancelled entries are treated as live so their original effect is
// what gets undone.
func (e *Engine) applyDeltas(ctx context.Context, companyID id.ID, entries []ledger.Entry, undo bool) error {
	live := make([]ledger.Entry, len(entries))
	for i, entry := range entries {
		entry.Cancelled = false
		live[i] = entry
	}
	accountDeltas, partnerDeltas := ledger.Deltas(live)

	accountIDs := make([]id.ID, 0, len(accountDeltas))
	for accountID := range accountDeltas {
		accountIDs = append(accountIDs, accountID)
	}
	sort.Slice(accountIDs, func(i, j int) bool { return id.Less(accountIDs[i], accountIDs[j]) })
	for _, accountID := range accountIDs {
		delta := accountDeltas[accountID]
		if undo {
			delta = delta.Neg()
		}
		if err := e.accounts.AdjustBalance(ctx, companyID, accountID, delta); err != nil {
			return fmt.Errorf("adjust account %s: %w", accountID, err)
		}
	}

	refs := make([]partners.Ref, 0, len(partnerDeltas))
	for ref := range partnerDeltas {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	for _, ref := range refs {
		delta := partnerDeltas[ref]
		if undo {
			delta = delta.Neg()
		}
		if err := e.partners.AdjustBalance(ctx, companyID, ref, delta); err != nil {
			return fmt.Errorf("adjust partner %s: %w", ref, err)
		}
	}

	if len(accountIDs)+len(refs) > 0 {
		logger.Debug(ctx, "balance caches adjusted",
			"accounts", len(accountIDs),
			"partners", len(refs),
			"undo", undo,
		)
	}
	return nil
}
