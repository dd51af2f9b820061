// Package transactions provides manually recorded income and expense entries.
// Only the account and partner an entry references are touched on write.
package transactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/tenant"
	"tally/internal/core/tx"
	"tally/internal/core/types"
	"tally/internal/domain/audit"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/events"
	"tally/internal/domain/posting"
	"tally/internal/domain/registers/ledger"
	"tally/pkg/logger"
)

// Input describes a manual transaction.
type Input struct {
	Kind        ledger.Kind
	Amount      types.Money
	AccountID   id.ID
	CustomerID  *id.ID
	SupplierID  *id.ID
	Description string
	Date        time.Time
	Currency    string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Amount      *types.Money
	AccountID   *id.ID
	Description *string
	Date        *time.Time

	// Partner replaces the partner reference; ClearPartner removes it.
	Partner      *partners.Ref
	ClearPartner bool
}

// Deps are the collaborators of Service.
type Deps struct {
	Ledger   ledger.Repository
	Accounts accounts.Repository
	Partners partners.Repository
	Engine   *posting.Engine
	Events   events.Publisher
	Audit    audit.Recorder

	// TxManager is optional. If nil, it is obtained from context.
	TxManager tx.Manager
}

// Service records manual transactions.
type Service struct {
	ledger    ledger.Repository
	accounts  accounts.Repository
	partners  partners.Repository
	engine    *posting.Engine
	events    events.Publisher
	audit     audit.Recorder
	txManager tx.Manager
	tracer    trace.Tracer
}

// NewService creates a new manual transaction service.
func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &Service{
		ledger:    d.Ledger,
		accounts:  d.Accounts,
		partners:  d.Partners,
		engine:    d.Engine,
		events:    d.Events,
		audit:     d.Audit,
		txManager: d.TxManager,
		tracer:    otel.Tracer("tally/transactions"),
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, companyID id.ID) error) error {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return err
	}
	txm := s.txManager
	if txm == nil {
		if txm, err = tenant.GetTxManager(ctx); err != nil {
			return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
		}
	}
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, companyID)
	})
}

// Create records an income (into the account) or an expense (out of it).
func (s *Service) Create(ctx context.Context, in Input) (*ledger.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "transactions.Create",
		trace.WithAttributes(attribute.String("entry.kind", string(in.Kind))))
	defer span.End()

	if in.Kind != ledger.KindIncome && in.Kind != ledger.KindExpense {
		return nil, apperror.NewValidation("manual transactions must be income or expense").
			WithDetail("kind", in.Kind)
	}
	if id.IsNil(in.AccountID) {
		return nil, apperror.NewValidation("account is required").WithDetail("field", "accountId")
	}

	var entry ledger.Entry
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		entry = ledger.NewEntry(companyID, in.Kind, in.Amount, strings.TrimSpace(in.Description))
		if in.Currency != "" {
			entry.Currency = strings.ToUpper(in.Currency)
		}
		if !in.Date.IsZero() {
			entry.OccurredAt = in.Date
		}
		setAccount(&entry, in.AccountID)
		entry.CustomerID, entry.SupplierID = in.CustomerID, in.SupplierID
		entry.CreatedBy = audit.Actor(ctx)

		if err := entry.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, companyID, &entry); err != nil {
			return err
		}
		if _, err := s.engine.Post(ctx, companyID, posting.Set{Entries: []ledger.Entry{entry}}); err != nil {
			return err
		}
		return s.events.Publish(ctx, entryEvent(events.TransactionRecorded, &entry))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "manual transaction recorded", "id", entry.ID, "kind", entry.Kind, "amount", entry.Amount.String())
	return &entry, nil
}

// Update edits a manual entry in place and replays every account and
// partner referenced before or after the edit.
func (s *Service) Update(ctx context.Context, entryID id.ID, p Patch) (*ledger.Entry, error) {
	ctx, span := s.startSpan(ctx, "transactions.Update", entryID)
	defer span.End()

	var after ledger.Entry
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		before, err := s.lockManual(ctx, companyID, entryID, "update")
		if err != nil {
			return err
		}

		after = *before
		if p.Amount != nil {
			after.Amount = *p.Amount
		}
		if p.AccountID != nil {
			setAccount(&after, *p.AccountID)
		}
		if p.Description != nil {
			after.Description = strings.TrimSpace(*p.Description)
		}
		if p.Date != nil {
			after.OccurredAt = *p.Date
		}
		switch {
		case p.ClearPartner:
			after.CustomerID, after.SupplierID = nil, nil
		case p.Partner != nil:
			after.SetPartner(*p.Partner)
		}

		if err := after.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, companyID, &after); err != nil {
			return err
		}
		if err := s.ledger.Update(ctx, &after); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if err := s.engine.Replace(ctx, companyID, *before, after); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, entryEvent(events.TransactionUpdated, &after)); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "entry",
			EntityID:   after.ID,
			Action:     audit.ActionUpdate,
			Changes: map[string]any{
				"before": entryChanges(before),
				"after":  entryChanges(&after),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Info(ctx, "manual transaction updated", "id", after.ID, "amount", after.Amount.String())
	return &after, nil
}

// Delete cancels a manual entry; it stays in the ledger for audit.
func (s *Service) Delete(ctx context.Context, entryID id.ID) error {
	ctx, span := s.startSpan(ctx, "transactions.Delete", entryID)
	defer span.End()

	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		e, err := s.lockManual(ctx, companyID, entryID, "delete")
		if err != nil {
			return err
		}
		now, actor := time.Now().UTC(), audit.Actor(ctx)
		if err := s.ledger.Cancel(ctx, companyID, []id.ID{e.ID}, now, actor); err != nil {
			return fmt.Errorf("cancel entry: %w", err)
		}
		e.Cancel(now, actor)
		if err := s.engine.Reverse(ctx, companyID, []ledger.Entry{*e}); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, entryEvent(events.TransactionCancelled, e)); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "entry",
			EntityID:   e.ID,
			Action:     audit.ActionDelete,
			UserID:     actor,
			Changes:    entryChanges(e),
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	logger.Info(ctx, "manual transaction deleted", "id", entryID)
	return nil
}

// List returns the company's entries matching filter.
func (s *Service) List(ctx context.Context, filter ledger.ListFilter) ([]ledger.Entry, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.ledger.List(ctx, companyID, filter)
}

func (s *Service) startSpan(ctx context.Context, name string, entryID id.ID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("entry.id", entryID.String())))
}

func entryEvent(eventType string, e *ledger.Entry) events.Event {
	return events.Event{
		CompanyID:     e.CompanyID,
		AggregateType: "Entry",
		AggregateID:   e.ID,
		EventType:     eventType,
		Payload:       entryChanges(e),
	}
}

func entryChanges(e *ledger.Entry) map[string]any {
	return map[string]any{
		"kind":        e.Kind,
		"amount":      e.Amount.String(),
		"sourceId":    e.SourceAccountID,
		"targetId":    e.TargetAccountID,
		"customerId":  e.CustomerID,
		"supplierId":  e.SupplierID,
		"description": e.Description,
		"occurredAt":  e.OccurredAt,
	}
}

// lockManual locks a live income or expense entry that no invoice or sale owns.
func (s *Service) lockManual(ctx context.Context, companyID, entryID id.ID, action string) (*ledger.Entry, error) {
	e, err := s.ledger.GetForUpdate(ctx, companyID, entryID)
	if err != nil {
		return nil, err
	}
	if e.Cancelled {
		return nil, apperror.NewInvalidStateTransition("entry", e.ID, "cancelled", action)
	}
	if !e.IsManual() {
		return nil, apperror.NewInvalidStateTransition("entry", e.ID, string(e.Kind), action).
			WithDetail("reason", "entry belongs to an invoice or a sale")
	}
	if e.Kind != ledger.KindIncome && e.Kind != ledger.KindExpense {
		return nil, apperror.NewInvalidStateTransition("entry", e.ID, string(e.Kind), action)
	}
	return e, nil
}

func (s *Service) checkReferences(ctx context.Context, companyID id.ID, e *ledger.Entry) error {
	for _, accountID := range e.Accounts() {
		if _, err := s.accounts.GetByID(ctx, companyID, accountID); err != nil {
			return err
		}
	}
	if ref, ok := e.Partner(); ok {
		if _, err := s.partners.GetByID(ctx, companyID, ref); err != nil {
			return err
		}
	}
	return nil
}

// setAccount places the account on the side the entry's kind moves money.
func setAccount(e *ledger.Entry, accountID id.ID) {
	e.SourceAccountID, e.TargetAccountID = nil, nil
	if e.Kind == ledger.KindIncome {
		e.TargetAccountID = id.Ptr(accountID)
		return
	}
	e.SourceAccountID = id.Ptr(accountID)
}
