package invoices

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	corenum "tally/internal/core/numerator"
	"tally/internal/core/security"
	"tally/internal/core/tenant"
	"tally/internal/core/tx"
	"tally/internal/core/types"
	"tally/internal/domain"
	"tally/internal/domain/audit"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/catalogs/products"
	"tally/internal/domain/events"
	"tally/internal/domain/posting"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
	"tally/pkg/logger"
)

// Deps are the collaborators of Service.
type Deps struct {
	Repo      Repository
	Partners  partners.Repository
	Products  products.Repository
	Accounts  accounts.Repository
	Ledger    ledger.Repository
	Recorder  *stock.Recorder
	Engine    *posting.Engine
	Numerator corenum.Generator
	Events    events.Publisher
	Audit     audit.Recorder
	Credit    *security.CreditRule

	// TxManager is optional. If nil, it is obtained from context.
	TxManager tx.Manager
}

// Service drives the invoice lifecycle.
type Service struct {
	repo      Repository
	partners  partners.Repository
	products  products.Repository
	accounts  accounts.Repository
	ledger    ledger.Repository
	recorder  *stock.Recorder
	engine    *posting.Engine
	numerator corenum.Generator
	events    events.Publisher
	audit     audit.Recorder
	credit    *security.CreditRule
	txManager tx.Manager
	tracer    trace.Tracer
}

// NewService creates a new invoice service.
func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &Service{
		repo:      d.Repo,
		partners:  d.Partners,
		products:  d.Products,
		accounts:  d.Accounts,
		ledger:    d.Ledger,
		recorder:  d.Recorder,
		engine:    d.Engine,
		numerator: d.Numerator,
		events:    d.Events,
		audit:     d.Audit,
		credit:    d.Credit,
		txManager: d.TxManager,
		tracer:    otel.Tracer("tally/invoices"),
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// inTx resolves the company and runs fn in one unit of work.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, companyID id.ID) error) error {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return err
	}
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, companyID)
	})
}

func (s *Service) startSpan(ctx context.Context, name string, invoiceID id.ID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("invoice.id", invoiceID.String())))
}

// Create stores a new draft invoice. Totals are computed here; any totals
// supplied by the caller are ignored.
func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return err
	}
	inv.CompanyID = companyID
	if id.IsNil(inv.ID) {
		inv.BaseEntity.ID = id.New()
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	inv.Status = StatusDraft
	inv.PaidAmount = types.Zero()
	inv.ApprovedAt = nil
	if inv.PartnerKind == "" {
		inv.PartnerKind = inv.Type.PartnerKind()
	}
	inv.RecalculateTotals()
	if err := inv.Validate(ctx); err != nil {
		return err
	}

	err = s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		if err := s.checkReferences(ctx, companyID, inv); err != nil {
			return err
		}

		if inv.Number == "" {
			cfg := corenum.DefaultConfig(inv.Type.Prefix())
			number, err := s.numerator.GetNextNumber(ctx, cfg, &corenum.Options{Strategy: NumeratorStrategy}, inv.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			inv.Number = number
		}
		inv.CreatedBy = audit.Actor(ctx)

		if err := s.repo.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		if err := s.repo.SaveLines(ctx, companyID, inv.ID, inv.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "invoice created", "id", inv.ID, "number", inv.Number, "total", inv.TotalAmount.String())
	return nil
}

// Update replaces a draft invoice's header fields and lines.
func (s *Service) Update(ctx context.Context, inv *Invoice) error {
	return s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		current, err := s.repo.GetForUpdate(ctx, companyID, inv.ID)
		if err != nil {
			return err
		}
		if err := current.CanModify("update"); err != nil {
			return err
		}

		inv.BaseEntity = current.BaseEntity
		inv.Number = current.Number
		inv.Status = StatusDraft
		inv.PaidAmount = types.Zero()
		inv.CreatedBy = current.CreatedBy
		inv.PartnerKind = inv.Type.PartnerKind()
		inv.RecalculateTotals()
		if err := inv.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, companyID, inv); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		if err := s.repo.SaveLines(ctx, companyID, inv.ID, inv.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
}

// Approve posts the invoice: stock moves (out for sale, in for purchase),
// one accrual entry for the total is recorded and the partner balance grows
// by the total. Only drafts can be approved.
func (s *Service) Approve(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	ctx, span := s.startSpan(ctx, "invoices.Approve", invoiceID)
	defer span.End()

	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		var err error
		inv, err = s.lockWithLines(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return apperror.NewInvalidStateTransition("invoice", inv.ID, string(inv.Status), "approve")
		}

		partner, err := s.partners.GetForUpdate(ctx, companyID, inv.Partner())
		if err != nil {
			return err
		}
		if inv.Type == TypeSale {
			if err := partners.CreditCheck(ctx, s.credit, partner, inv.TotalAmount); err != nil {
				return err
			}
		}

		actor := audit.Actor(ctx)
		requests, accrual := inv.ApprovalSet(actor)
		set := posting.Set{Movements: requests}
		if inv.TotalAmount.IsPositive() {
			set.Entries = []ledger.Entry{accrual}
		}
		if _, err := s.engine.Post(ctx, companyID, set); err != nil {
			return err
		}

		now := time.Now().UTC()
		inv.Status = StatusApproved
		inv.ApprovedAt = &now
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		if err := s.events.Publish(ctx, events.Event{
			CompanyID:     companyID,
			AggregateType: "Invoice",
			AggregateID:   inv.ID,
			EventType:     events.InvoiceApproved,
			Payload: map[string]any{
				"number":    inv.Number,
				"type":      inv.Type,
				"partnerId": inv.PartnerID,
				"total":     inv.TotalAmount.String(),
			},
		}); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "invoice",
			EntityID:   inv.ID,
			Action:     audit.ActionApprove,
			UserID:     actor,
			Changes:    map[string]any{"status": map[string]any{"old": StatusDraft, "new": StatusApproved}},
		})
	})
	if err != nil {
		span.RecordError(err)
		logFailure(ctx, "invoice approval failed", invoiceID, err)
		return nil, err
	}

	logger.Info(ctx, "invoice approved", "id", inv.ID, "number", inv.Number, "total", inv.TotalAmount.String())
	return inv, nil
}

// Payment is the outcome of a collection or payment.
type Payment struct {
	Invoice *Invoice
	Entry   ledger.Entry
}

// Collect records money received from the customer of a sale invoice into
// the account.
func (s *Service) Collect(ctx context.Context, invoiceID id.ID, amount types.Money, accountID id.ID) (*Payment, error) {
	ctx, span := s.startSpan(ctx, "invoices.Collect", invoiceID)
	defer span.End()
	return s.recordPayment(ctx, span, invoiceID, amount, accountID, TypeSale)
}

// Pay records money paid to the supplier of a purchase invoice from the account.
func (s *Service) Pay(ctx context.Context, invoiceID id.ID, amount types.Money, accountID id.ID) (*Payment, error) {
	ctx, span := s.startSpan(ctx, "invoices.Pay", invoiceID)
	defer span.End()
	return s.recordPayment(ctx, span, invoiceID, amount, accountID, TypePurchase)
}

func (s *Service) recordPayment(ctx context.Context, span trace.Span, invoiceID id.ID, amount types.Money, accountID id.ID, want Type) (*Payment, error) {
	action := "collect"
	if want == TypePurchase {
		action = "pay"
	}
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}
	if id.IsNil(accountID) {
		return nil, apperror.NewValidation("account is required").WithDetail("field", "accountId")
	}

	var result Payment
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		inv, err := s.repo.GetForUpdate(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Type != want {
			return apperror.NewInvalidStateTransition("invoice", inv.ID, string(inv.Status), action).
				WithDetail("type", inv.Type)
		}
		if !inv.Status.Open() {
			return apperror.NewInvalidStateTransition("invoice", inv.ID, string(inv.Status), action)
		}
		remaining := inv.Remaining()
		if !remaining.IsPositive() {
			return apperror.NewInvalidStateTransition("invoice", inv.ID, string(inv.Status), action).
				WithDetail("reason", "invoice is fully paid")
		}
		if amount.GreaterThan(remaining) {
			return apperror.NewInvalidStateTransition("invoice", inv.ID, string(inv.Status), action).
				WithDetail("amount", amount.String()).
				WithDetail("remaining", remaining.String())
		}

		account, err := s.accounts.GetForUpdate(ctx, companyID, accountID)
		if err != nil {
			return err
		}

		actor := audit.Actor(ctx)
		var entry ledger.Entry
		if want == TypeSale {
			entry = ledger.NewEntry(companyID, ledger.KindIncome, amount, "Collection for invoice "+inv.Number)
			entry.TargetAccountID = id.Ptr(account.ID)
		} else {
			if account.Balance.LessThan(amount) {
				return apperror.NewInsufficientFunds(account.ID.String(), amount.String(), account.Balance.String())
			}
			entry = ledger.NewEntry(companyID, ledger.KindExpense, amount, "Payment for invoice "+inv.Number)
			entry.SourceAccountID = id.Ptr(account.ID)
		}
		entry.Currency = inv.Currency
		entry.InvoiceID = id.Ptr(inv.ID)
		entry.SetPartner(inv.Partner())
		entry.CreatedBy = actor

		if _, err := s.engine.Post(ctx, companyID, posting.Set{Entries: []ledger.Entry{entry}}); err != nil {
			return err
		}

		oldStatus := inv.Status
		inv.PaidAmount = inv.PaidAmount.Add(amount)
		if inv.PaidAmount.GreaterThanOrEqual(inv.TotalAmount) {
			inv.Status = StatusPaid
		}
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		result = Payment{Invoice: inv, Entry: entry}
		return s.events.Publish(ctx, events.Event{
			CompanyID:     companyID,
			AggregateType: "Invoice",
			AggregateID:   inv.ID,
			EventType:     events.InvoicePaymentRecorded,
			Payload: map[string]any{
				"number":     inv.Number,
				"amount":     amount.String(),
				"accountId":  account.ID,
				"paidAmount": inv.PaidAmount.String(),
				"oldStatus":  oldStatus,
				"status":     inv.Status,
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		logFailure(ctx, "invoice "+action+" failed", invoiceID, err)
		return nil, err
	}

	logger.Info(ctx, "invoice payment recorded",
		"id", invoiceID,
		"action", action,
		"amount", amount.String(),
		"status", result.Invoice.Status,
	)
	return &result, nil
}

// Delete removes an invoice. Drafts are simply deleted; approved and paid
// invoices require an administrator and are reversed first.
func (s *Service) Delete(ctx context.Context, invoiceID id.ID) error {
	ctx, span := s.startSpan(ctx, "invoices.Delete", invoiceID)
	defer span.End()

	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		inv, err := s.repo.GetForUpdate(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			if err := security.RequireAdmin(ctx, "delete a non-draft invoice"); err != nil {
				return err
			}
		}

		var cancelled []ledger.Entry
		if inv.Status.Open() {
			if cancelled, err = s.unwind(ctx, companyID, inv); err != nil {
				return err
			}
		}

		if err := s.repo.Delete(ctx, companyID, inv.ID); err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}

		if inv.Status.Open() {
			if err := s.engine.Reverse(ctx, companyID, cancelled, inv.Partner()); err != nil {
				return err
			}
			if err := s.publishReversed(ctx, companyID, inv, "deleted", len(cancelled)); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "invoice",
			EntityID:   inv.ID,
			Action:     audit.ActionDelete,
			Changes: map[string]any{
				"number":           inv.Number,
				"status":           inv.Status,
				"total":            inv.TotalAmount.String(),
				"cancelledEntries": len(cancelled),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		logFailure(ctx, "invoice delete failed", invoiceID, err)
		return err
	}

	logger.Info(ctx, "invoice deleted", "id", invoiceID)
	return nil
}

// Cancel reverses an invoice's effects and keeps it with status canceled.
// Canceling an approved or paid invoice requires an administrator.
func (s *Service) Cancel(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	ctx, span := s.startSpan(ctx, "invoices.Cancel", invoiceID)
	defer span.End()

	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		var err error
		inv, err = s.repo.GetForUpdate(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		oldStatus := inv.Status
		switch {
		case oldStatus == StatusCanceled:
			return apperror.NewInvalidStateTransition("invoice", inv.ID, string(oldStatus), "cancel")
		case oldStatus.Open():
			if err := security.RequireAdmin(ctx, "cancel an approved invoice"); err != nil {
				return err
			}
		}

		var cancelled []ledger.Entry
		if oldStatus.Open() {
			if cancelled, err = s.unwind(ctx, companyID, inv); err != nil {
				return err
			}
		}

		inv.Status = StatusCanceled
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		if oldStatus.Open() {
			if err := s.engine.Reverse(ctx, companyID, cancelled, inv.Partner()); err != nil {
				return err
			}
			if err := s.publishReversed(ctx, companyID, inv, "canceled", len(cancelled)); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "invoice",
			EntityID:   inv.ID,
			Action:     audit.ActionCancel,
			Changes:    map[string]any{"status": map[string]any{"old": oldStatus, "new": StatusCanceled}},
		})
	})
	if err != nil {
		span.RecordError(err)
		logFailure(ctx, "invoice cancel failed", invoiceID, err)
		return nil, err
	}

	logger.Info(ctx, "invoice canceled", "id", inv.ID, "number", inv.Number)
	return inv, nil
}

// SetStatus overrides the status without replaying stock or ledger effects.
// This can leave history and status disagreeing, so it is restricted to
// administrators and always followed by a recompute of the partner.
func (s *Service) SetStatus(ctx context.Context, invoiceID id.ID, status Status) (*Invoice, error) {
	ctx, span := s.startSpan(ctx, "invoices.SetStatus", invoiceID)
	defer span.End()

	if err := security.RequireAdmin(ctx, "override invoice status"); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperror.NewValidation("invalid invoice status").WithDetail("status", status)
	}

	var inv *Invoice
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		var err error
		inv, err = s.repo.GetForUpdate(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		oldStatus := inv.Status
		inv.Status = status
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		logger.Warn(ctx, "invoice status overridden without replaying effects",
			"id", inv.ID,
			"old_status", oldStatus,
			"new_status", status,
			"hazard", "consistency",
		)

		if err := s.engine.Recompute(ctx, companyID, nil, []partners.Ref{inv.Partner()}); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, events.Event{
			CompanyID:     companyID,
			AggregateType: "Invoice",
			AggregateID:   inv.ID,
			EventType:     events.InvoiceStatusOverridden,
			Payload:       map[string]any{"old": oldStatus, "new": status},
		}); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "invoice",
			EntityID:   inv.ID,
			Action:     audit.ActionSetStatus,
			Changes:    map[string]any{"status": map[string]any{"old": oldStatus, "new": status}},
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return inv, nil
}

// Get retrieves an invoice with lines.
func (s *Service) Get(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.GetByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, companyID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	inv.Lines = lines
	return inv, nil
}

// List retrieves invoices with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return domain.ListResult[*Invoice]{}, err
	}
	filter.Page = filter.Page.Normalize(50, 500)
	return s.repo.List(ctx, companyID, filter)
}

// unwind reverts stock and cancels every live entry of the invoice. The
// caller recomputes balances once the invoice row reflects its new state.
func (s *Service) unwind(ctx context.Context, companyID id.ID, inv *Invoice) ([]ledger.Entry, error) {
	if err := s.recorder.RevertInvoice(ctx, companyID, inv.ID); err != nil {
		return nil, err
	}
	cancelled, err := s.ledger.CancelByInvoice(ctx, companyID, inv.ID, time.Now().UTC(), audit.Actor(ctx))
	if err != nil {
		return nil, fmt.Errorf("cancel entries: %w", err)
	}
	return cancelled, nil
}

func (s *Service) publishReversed(ctx context.Context, companyID id.ID, inv *Invoice, how string, entries int) error {
	err := s.events.Publish(ctx, events.Event{
		CompanyID:     companyID,
		AggregateType: "Invoice",
		AggregateID:   inv.ID,
		EventType:     events.InvoiceReversed,
		Payload: map[string]any{
			"number":           inv.Number,
			"how":              how,
			"cancelledEntries": entries,
		},
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (s *Service) lockWithLines(ctx context.Context, companyID, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetForUpdate(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, companyID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	inv.Lines = lines
	return inv, nil
}

// checkReferences verifies the partner and every product exist in the company.
func (s *Service) checkReferences(ctx context.Context, companyID id.ID, inv *Invoice) error {
	if _, err := s.partners.GetByID(ctx, companyID, inv.Partner()); err != nil {
		return err
	}
	seen := make(map[id.ID]bool, len(inv.Lines))
	for _, line := range inv.Lines {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		if _, err := s.products.GetByID(ctx, companyID, line.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func logFailure(ctx context.Context, msg string, invoiceID id.ID, err error) {
	if apperror.IsBusinessError(err) {
		logger.Warn(ctx, msg, "id", invoiceID, "error", err)
		return
	}
	logger.Error(ctx, msg, "id", invoiceID, "error", err)
}
