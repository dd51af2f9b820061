package accounts

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
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/events"
	"tally/internal/domain/posting"
	"tally/internal/domain/registers/ledger"
	"tally/pkg/logger"
)

// PartnerUsage reports whether documents still reference a partner.
type PartnerUsage interface {
	ExistsForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) (bool, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo      Repository
	Partners  partners.Repository
	Ledger    ledger.Repository
	Engine    *posting.Engine
	Invoices  PartnerUsage
	Events    events.Publisher
	Audit     audit.Recorder
	Tolerance types.Money

	// TxManager is optional. If nil, it is obtained from context.
	TxManager tx.Manager
}

// Service provides account operations.
type Service struct {
	repo      Repository
	partners  partners.Repository
	ledger    ledger.Repository
	engine    *posting.Engine
	invoices  PartnerUsage
	events    events.Publisher
	audit     audit.Recorder
	tolerance types.Money
	txManager tx.Manager
	tracer    trace.Tracer
}

// NewService creates a new account service.
func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Tolerance.IsZero() {
		d.Tolerance = types.MustMoney("0.001")
	}
	return &Service{
		repo:      d.Repo,
		partners:  d.Partners,
		ledger:    d.Ledger,
		engine:    d.Engine,
		invoices:  d.Invoices,
		events:    d.Events,
		audit:     d.Audit,
		tolerance: d.Tolerance,
		txManager: d.TxManager,
		tracer:    otel.Tracer("tally/accounts"),
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

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

// CreateInput describes a new account.
type CreateInput struct {
	Name           string
	Type           Type
	Currency       string
	OpeningBalance types.Money

	// Partner accounts only. The partner is found by email or created.
	PartnerKind  partners.Kind
	PartnerName  string
	PartnerEmail string

	BankName      string
	IBAN          string
	BranchCode    string
	AccountNumber string

	CreditLimit types.Money
	CutoffDay   int
	PaymentDay  int
}

// Create creates an account. A non-zero opening balance is recorded as an
// income (positive) or expense (negative) entry on the account.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	var created *Account
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		a := NewAccount(companyID, in.Name, in.Type)
		if in.Currency != "" {
			a.Currency = strings.ToUpper(in.Currency)
		}
		a.BankName, a.IBAN, a.BranchCode, a.AccountNumber = in.BankName, in.IBAN, in.BranchCode, in.AccountNumber
		a.CreditLimit, a.CutoffDay, a.PaymentDay = in.CreditLimit, in.CutoffDay, in.PaymentDay

		if in.Type == TypePartner {
			ref, err := s.resolvePartner(ctx, companyID, in.PartnerKind, in.PartnerName, in.PartnerEmail, in.Name)
			if err != nil {
				return err
			}
			a.LinkPartner(ref)
		}
		a.Normalize()
		if err := a.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, a); err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		if !in.OpeningBalance.IsZero() {
			entry := s.balanceEntry(ctx, a, in.OpeningBalance, "Opening balance")
			if _, err := s.engine.Post(ctx, companyID, posting.Set{Entries: []ledger.Entry{entry}}); err != nil {
				return err
			}
		}

		var err error
		created, err = s.repo.GetByID(ctx, companyID, a.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "account created", "id", created.ID, "type", created.Type, "balance", created.Balance.String())
	return created, nil
}

// UpdateInput is a partial account update. Nil fields are left unchanged.
type UpdateInput struct {
	Name     *string
	Currency *string

	// Balance, when it differs from the cached balance beyond tolerance,
	// posts an adjustment entry for the difference.
	Balance *types.Money

	PartnerKind  *partners.Kind
	PartnerEmail *string

	BankName      *string
	IBAN          *string
	BranchCode    *string
	AccountNumber *string

	CreditLimit *types.Money
	CutoffDay   *int
	PaymentDay  *int
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, accountID id.ID, in UpdateInput) (*Account, error) {
	var updated *Account
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		a, err := s.repo.GetForUpdate(ctx, companyID, accountID)
		if err != nil {
			return err
		}

		setString(&a.Name, in.Name)
		setString(&a.Currency, in.Currency)
		a.Name = strings.TrimSpace(a.Name)
		a.Currency = strings.ToUpper(a.Currency)
		setString(&a.BankName, in.BankName)
		setString(&a.IBAN, in.IBAN)
		setString(&a.BranchCode, in.BranchCode)
		setString(&a.AccountNumber, in.AccountNumber)
		if in.CreditLimit != nil {
			a.CreditLimit = *in.CreditLimit
		}
		if in.CutoffDay != nil {
			a.CutoffDay = *in.CutoffDay
		}
		if in.PaymentDay != nil {
			a.PaymentDay = *in.PaymentDay
		}
		if a.Type == TypePartner && in.PartnerKind != nil && in.PartnerEmail != nil {
			ref, err := s.resolvePartner(ctx, companyID, *in.PartnerKind, "", *in.PartnerEmail, a.Name)
			if err != nil {
				return err
			}
			a.LinkPartner(ref)
		}
		a.Normalize()
		if err := a.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		if in.Balance != nil && !types.WithinTolerance(a.Balance, *in.Balance, s.tolerance) {
			diff := in.Balance.Sub(a.Balance)
			desc := fmt.Sprintf("Balance adjustment: %s -> %s (difference %s)",
				a.Balance.StringFixed(types.MoneyPlaces),
				in.Balance.StringFixed(types.MoneyPlaces),
				diff.StringFixed(types.MoneyPlaces))
			entry := s.balanceEntry(ctx, a, diff, desc)
			if _, err := s.engine.Post(ctx, companyID, posting.Set{Entries: []ledger.Entry{entry}}); err != nil {
				return err
			}
		}

		updated, err = s.repo.GetByID(ctx, companyID, a.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an account that no live entry references. A partner
// account also removes its partner when nothing else references it.
func (s *Service) Delete(ctx context.Context, accountID id.ID) error {
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		a, err := s.repo.GetForUpdate(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		used, err := s.ledger.HasLiveForAccount(ctx, companyID, a.ID)
		if err != nil {
			return fmt.Errorf("check entries: %w", err)
		}
		if used {
			return apperror.NewConflict("account has ledger entries and cannot be deleted").
				WithDetail("accountId", a.ID)
		}
		if err := s.repo.Delete(ctx, companyID, a.ID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}

		if ref, ok := a.Partner(); ok {
			return s.deleteOrphanPartner(ctx, companyID, ref)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "account deleted", "id", accountID)
	return nil
}

// Adjustment is the outcome of AdjustBalance.
type Adjustment struct {
	Old        types.Money  `json:"old"`
	New        types.Money  `json:"new"`
	Difference types.Money  `json:"difference"`
	Entry      ledger.Entry `json:"entry"`
}

// AdjustBalance records the difference between the cached and the declared
// balance as an income or expense entry carrying the reason.
func (s *Service) AdjustBalance(ctx context.Context, accountID id.ID, newBalance types.Money, reason string, confirmed bool) (*Adjustment, error) {
	if !confirmed {
		return nil, apperror.NewValidation("balance adjustment must be confirmed").WithDetail("field", "confirmed")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "manual adjustment"
	}

	var adj Adjustment
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		a, err := s.repo.GetForUpdate(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		diff := newBalance.Sub(a.Balance)
		if diff.IsZero() {
			return apperror.NewValidation("new balance equals current balance").
				WithDetail("balance", a.Balance.String())
		}

		entry := s.balanceEntry(ctx, a, diff, "Balance adjustment: "+reason)
		if _, err := s.engine.Post(ctx, companyID, posting.Set{Entries: []ledger.Entry{entry}}); err != nil {
			return err
		}
		adj = Adjustment{Old: a.Balance, New: newBalance, Difference: diff, Entry: entry}

		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "account",
			EntityID:   a.ID,
			Action:     audit.ActionAdjust,
			Changes: map[string]any{
				"old":    a.Balance.String(),
				"new":    newBalance.String(),
				"reason": reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "account balance adjusted",
		"id", accountID,
		"old", adj.Old.String(),
		"new", adj.New.String(),
	)
	return &adj, nil
}

// TransferInput describes a transfer between two accounts.
type TransferInput struct {
	SourceID    id.ID
	TargetID    id.ID
	Amount      types.Money
	Description string
	Date        time.Time
}

// Transfer moves money between two accounts of the company and then
// reconciles both as a consistency check.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*ledger.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.Transfer", trace.WithAttributes(
		attribute.String("source.id", in.SourceID.String()),
		attribute.String("target.id", in.TargetID.String()),
	))
	defer span.End()

	if id.IsNil(in.SourceID) || id.IsNil(in.TargetID) {
		return nil, apperror.NewValidation("source and target accounts are required")
	}
	if in.SourceID == in.TargetID {
		return nil, apperror.NewValidation("source and target accounts must differ")
	}
	if !in.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}

	var entry ledger.Entry
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		first, second := in.SourceID, in.TargetID
		if id.Less(second, first) {
			first, second = second, first
		}
		locked := make(map[id.ID]*Account, 2)
		for _, accountID := range []id.ID{first, second} {
			a, err := s.repo.GetForUpdate(ctx, companyID, accountID)
			if err != nil {
				return err
			}
			locked[accountID] = a
		}

		src := locked[in.SourceID]
		if src.Balance.LessThan(in.Amount) {
			return apperror.NewInsufficientFunds(src.ID.String(), in.Amount.String(), src.Balance.String())
		}

		desc := in.Description
		if desc == "" {
			desc = fmt.Sprintf("Transfer %s -> %s", src.Name, locked[in.TargetID].Name)
		}
		entry = ledger.NewEntry(companyID, ledger.KindTransfer, in.Amount, desc)
		entry.Currency = src.Currency
		if !in.Date.IsZero() {
			entry.OccurredAt = in.Date
		}
		entry.SourceAccountID = id.Ptr(in.SourceID)
		entry.TargetAccountID = id.Ptr(in.TargetID)
		entry.CreatedBy = audit.Actor(ctx)

		if _, err := s.engine.Post(ctx, companyID, posting.Set{Entries: []ledger.Entry{entry}}); err != nil {
			return err
		}
		if err := s.engine.Recompute(ctx, companyID, []id.ID{in.SourceID, in.TargetID}, nil); err != nil {
			return err
		}
		return s.events.Publish(ctx, events.Event{
			CompanyID:     companyID,
			AggregateType: "Account",
			AggregateID:   in.SourceID,
			EventType:     events.TransferRecorded,
			Payload: map[string]any{
				"entryId":  entry.ID,
				"targetId": in.TargetID,
				"amount":   in.Amount.String(),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "transfer recorded",
		"source_id", in.SourceID,
		"target_id", in.TargetID,
		"amount", in.Amount.String(),
	)
	return &entry, nil
}

// Get retrieves an account.
func (s *Service) Get(ctx context.Context, accountID id.ID) (*Account, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, companyID, accountID)
}

// List retrieves every account of the company.
func (s *Service) List(ctx context.Context) ([]*Account, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, companyID)
}

// balanceEntry builds an income entry for a positive diff or an expense
// entry for a negative one.
func (s *Service) balanceEntry(ctx context.Context, a *Account, diff types.Money, desc string) ledger.Entry {
	var entry ledger.Entry
	if diff.IsPositive() {
		entry = ledger.NewEntry(a.CompanyID, ledger.KindIncome, diff, desc)
		entry.TargetAccountID = id.Ptr(a.ID)
	} else {
		entry = ledger.NewEntry(a.CompanyID, ledger.KindExpense, diff.Abs(), desc)
		entry.SourceAccountID = id.Ptr(a.ID)
	}
	entry.Currency = a.Currency
	entry.CreatedBy = audit.Actor(ctx)
	return entry
}

// resolvePartner finds the partner by email or creates it.
func (s *Service) resolvePartner(ctx context.Context, companyID id.ID, kind partners.Kind, name, email, fallbackName string) (partners.Ref, error) {
	if !kind.Valid() {
		return partners.Ref{}, apperror.NewValidation("partner kind is required").WithDetail("field", "partnerKind")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return partners.Ref{}, apperror.NewValidation("partner email is required").WithDetail("field", "partnerEmail")
	}

	existing, err := s.partners.FindByEmail(ctx, companyID, kind, email)
	if err == nil {
		return existing.Ref(), nil
	}
	if !apperror.IsNotFound(err) {
		return partners.Ref{}, err
	}

	if name == "" {
		name = fallbackName
	}
	p := partners.NewPartner(companyID, kind, name, email)
	if err := p.Validate(ctx); err != nil {
		return partners.Ref{}, err
	}
	if err := s.partners.Create(ctx, p); err != nil {
		return partners.Ref{}, fmt.Errorf("create partner: %w", err)
	}
	logger.Info(ctx, "partner created for account", "partner_id", p.ID, "kind", kind)
	return p.Ref(), nil
}

func (s *Service) deleteOrphanPartner(ctx context.Context, companyID id.ID, ref partners.Ref) error {
	hasEntries, err := s.ledger.HasLiveForPartner(ctx, companyID, ref)
	if err != nil {
		return fmt.Errorf("check partner entries: %w", err)
	}
	if hasEntries {
		return nil
	}
	if s.invoices != nil {
		hasInvoices, err := s.invoices.ExistsForPartner(ctx, companyID, ref)
		if err != nil {
			return fmt.Errorf("check partner invoices: %w", err)
		}
		if hasInvoices {
			return nil
		}
	}
	others, err := s.repo.List(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	for _, other := range others {
		if otherRef, ok := other.Partner(); ok && otherRef == ref {
			return nil
		}
	}
	if err := s.partners.Delete(ctx, companyID, ref); err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("delete partner: %w", err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
