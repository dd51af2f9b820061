// Package reconcile rebuilds cached account and partner balances from the
// authoritative history and reports drift.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/tx"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/registers/ledger"
	"tally/pkg/logger"
)

// DefaultTolerance is the largest cached/computed difference not reported as drift.
var DefaultTolerance = types.MustMoney("0.001")

// Accounts is the account balance cache.
type Accounts interface {
	LockBalance(ctx context.Context, companyID, accountID id.ID) (types.Money, error)
	SetBalance(ctx context.Context, companyID, accountID id.ID, balance types.Money) error
	ListIDs(ctx context.Context, companyID id.ID) ([]id.ID, error)
}

// Partners is the partner balance cache.
type Partners interface {
	LockBalance(ctx context.Context, companyID id.ID, ref partners.Ref) (types.Money, error)
	SetBalance(ctx context.Context, companyID id.ID, ref partners.Ref, balance types.Money) error
	ListRefs(ctx context.Context, companyID id.ID) ([]partners.Ref, error)
}

// InvoiceTotals sums the totals of the partner's approved and paid invoices
// (sale invoices for customers, purchase invoices for suppliers).
type InvoiceTotals interface {
	SumOpenTotals(ctx context.Context, companyID id.ID, ref partners.Ref) (types.Money, error)
}

// Result is the outcome of recomputing one balance.
type Result struct {
	Subject  string      `json:"subject"`
	ID       id.ID       `json:"id"`
	Previous types.Money `json:"previous"`
	Computed types.Money `json:"computed"`
	Drifted  bool        `json:"drifted"`
}

// Report summarizes a company-wide pass.
type Report struct {
	CompanyID id.ID         `json:"companyId"`
	Accounts  int           `json:"accounts"`
	Partners  int           `json:"partners"`
	Drifted   []Result      `json:"drifted,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Config for Reconciler.
type Config struct {
	Ledger    ledger.Repository
	Accounts  Accounts
	Partners  Partners
	Invoices  InvoiceTotals
	TxManager tx.Manager
	Tolerance types.Money
}

// Reconciler recomputes cached balances. Every method is idempotent.
type Reconciler struct {
	ledger    ledger.Repository
	accounts  Accounts
	partners  Partners
	invoices  InvoiceTotals
	txManager tx.Manager
	tolerance types.Money
	tracer    trace.Tracer
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	tol := cfg.Tolerance
	if tol.IsZero() {
		tol = DefaultTolerance
	}
	return &Reconciler{
		ledger:    cfg.Ledger,
		accounts:  cfg.Accounts,
		partners:  cfg.Partners,
		invoices:  cfg.Invoices,
		txManager: cfg.TxManager,
		tolerance: tol,
		tracer:    otel.Tracer("tally/reconcile"),
	}
}

// RecomputeAccount replays the account's live entries and overwrites the
// cached balance with the sum.
func (r *Reconciler) RecomputeAccount(ctx context.Context, companyID, accountID id.ID) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.Account",
		trace.WithAttributes(attribute.String("account.id", accountID.String())))
	defer span.End()

	res := Result{Subject: "account", ID: accountID}
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cached, err := r.accounts.LockBalance(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		entries, err := r.ledger.ListForAccount(ctx, companyID, accountID)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}

		computed := types.Zero()
		for _, e := range entries {
			computed = computed.Add(ledger.AccountEffect(e, accountID))
		}

		res.Previous, res.Computed = cached, types.RoundMoney(computed)
		r.checkDrift(ctx, &res)
		if cached.Equal(res.Computed) {
			return nil
		}
		return r.accounts.SetBalance(ctx, companyID, accountID, res.Computed)
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	return res, nil
}

// RecomputePartner rebuilds one partner balance:
//
//	customer = open sale invoice totals + receivable adjustments - collections
//	supplier = open purchase invoice totals - payments
//
// Accrual entries are skipped; the invoice total is the same fact.
func (r *Reconciler) RecomputePartner(ctx context.Context, companyID id.ID, ref partners.Ref) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.Partner",
		trace.WithAttributes(
			attribute.String("partner.kind", string(ref.Kind)),
			attribute.String("partner.id", ref.ID.String()),
		))
	defer span.End()

	res := Result{Subject: string(ref.Kind), ID: ref.ID}
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cached, err := r.partners.LockBalance(ctx, companyID, ref)
		if err != nil {
			return err
		}
		computed, err := r.invoices.SumOpenTotals(ctx, companyID, ref)
		if err != nil {
			return fmt.Errorf("sum invoice totals: %w", err)
		}
		entries, err := r.ledger.ListForPartner(ctx, companyID, ref)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		for _, e := range entries {
			if e.Kind == ledger.KindInvoiceAccrual {
				continue
			}
			computed = computed.Add(ledger.PartnerEffect(e, ref))
		}

		res.Previous, res.Computed = cached, types.RoundMoney(computed)
		r.checkDrift(ctx, &res)
		if cached.Equal(res.Computed) {
			return nil
		}
		return r.partners.SetBalance(ctx, companyID, ref, res.Computed)
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	return res, nil
}

// RecomputeAllPartners recomputes every customer and supplier of the company.
func (r *Reconciler) RecomputeAllPartners(ctx context.Context, companyID id.ID) ([]Result, error) {
	refs, err := r.partners.ListRefs(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		res, err := r.RecomputePartner(ctx, companyID, ref)
		if err != nil {
			return results, fmt.Errorf("partner %s: %w", ref, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RecomputeCompany recomputes every account and every partner of the company.
func (r *Reconciler) RecomputeCompany(ctx context.Context, companyID id.ID) (Report, error) {
	start := time.Now()
	report := Report{CompanyID: companyID}

	accountIDs, err := r.accounts.ListIDs(ctx, companyID)
	if err != nil {
		return report, fmt.Errorf("list accounts: %w", err)
	}
	for _, accountID := range accountIDs {
		res, err := r.RecomputeAccount(ctx, companyID, accountID)
		if err != nil {
			return report, fmt.Errorf("account %s: %w", accountID, err)
		}
		report.Accounts++
		if res.Drifted {
			report.Drifted = append(report.Drifted, res)
		}
	}

	results, err := r.RecomputeAllPartners(ctx, companyID)
	report.Partners = len(results)
	for _, res := range results {
		if res.Drifted {
			report.Drifted = append(report.Drifted, res)
		}
	}
	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}

	logger.Info(ctx, "company reconciled",
		"company_id", companyID,
		"accounts", report.Accounts,
		"partners", report.Partners,
		"drifted", len(report.Drifted),
		"duration", report.Duration,
	)
	return report, nil
}

// RecomputeAffected recomputes the given accounts and partners in a stable
// order (accounts by id, then partners).
func (r *Reconciler) RecomputeAffected(ctx context.Context, companyID id.ID, accountIDs []id.ID, refs []partners.Ref) error {
	accountIDs = append([]id.ID(nil), accountIDs...)
	sort.Slice(accountIDs, func(i, j int) bool { return id.Less(accountIDs[i], accountIDs[j]) })
	for _, accountID := range accountIDs {
		if _, err := r.RecomputeAccount(ctx, companyID, accountID); err != nil {
			return fmt.Errorf("recompute account %s: %w", accountID, err)
		}
	}

	refs = append([]partners.Ref(nil), refs...)
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	for _, ref := range refs {
		if _, err := r.RecomputePartner(ctx, companyID, ref); err != nil {
			return fmt.Errorf("recompute partner %s: %w", ref, err)
		}
	}
	return nil
}

func (r *Reconciler) checkDrift(ctx context.Context, res *Result) {
	if types.WithinTolerance(res.Previous, res.Computed, r.tolerance) {
		return
	}
	res.Drifted = true
	err := apperror.NewConsistencyFailure(res.Subject, res.ID, res.Previous.String(), res.Computed.String())
	logger.Warn(ctx, "cached balance drifted",
		"subject", res.Subject,
		"id", res.ID,
		"cached", res.Previous.String(),
		"computed", res.Computed.String(),
		"error", err,
	)
}
