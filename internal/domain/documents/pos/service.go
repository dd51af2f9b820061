package pos

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
	"tally/internal/core/security"
	"tally/internal/core/tenant"
	"tally/internal/core/tx"
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

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// Deps are the collaborators of Service.
type Deps struct {
	Repo     Repository
	Products products.Repository
	Accounts accounts.Repository
	Partners partners.Repository
	Ledger   ledger.Repository
	Engine   *posting.Engine
	Events   events.Publisher
	Audit    audit.Recorder
	Credit   *security.CreditRule

	// TxManager is optional. If nil, it is obtained from context.
	TxManager tx.Manager
}

// Service records and cancels sales.
type Service struct {
	repo      Repository
	products  products.Repository
	accounts  accounts.Repository
	partners  partners.Repository
	ledger    ledger.Repository
	engine    *posting.Engine
	events    events.Publisher
	audit     audit.Recorder
	credit    *security.CreditRule
	txManager tx.Manager
	tracer    trace.Tracer
}

// NewService creates a new sale service.
func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &Service{
		repo:      d.Repo,
		products:  d.Products,
		accounts:  d.Accounts,
		partners:  d.Partners,
		ledger:    d.Ledger,
		engine:    d.Engine,
		events:    d.Events,
		audit:     d.Audit,
		credit:    d.Credit,
		txManager: d.TxManager,
		tracer:    otel.Tracer("tally/pos"),
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

// RecordSale stores the sale, moves tracked products out of stock and posts
// the money side: a receivable for credit sales, income into the account for
// cash sales. A cash sale with a customer also posts a receivable of the same
// amount so the customer's balance nets to zero.
func (s *Service) RecordSale(ctx context.Context, in Input) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "pos.RecordSale",
		trace.WithAttributes(
			attribute.Int("items", len(in.Items)),
			attribute.Bool("on_credit", in.OnCredit),
		))
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	var sale *Sale
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		actor := audit.Actor(ctx)
		sale = &Sale{
			Currency:   strings.ToUpper(in.Currency),
			OnCredit:   in.OnCredit,
			AccountID:  in.AccountID,
			CustomerID: in.CustomerID,
			Notes:      strings.TrimSpace(in.Notes),
			CreatedBy:  actor,
		}
		sale.BaseEntity.CompanyID = companyID
		sale.BaseEntity.ID = id.New()
		sale.Version = 1
		sale.CreatedAt = time.Now().UTC()
		sale.UpdatedAt = sale.CreatedAt
		if sale.Currency == "" {
			sale.Currency = accounts.DefaultCurrency
		}
		if in.OnCredit {
			sale.AccountID = nil
		}

		for _, it := range in.Items {
			p, err := s.products.GetByID(ctx, companyID, it.ProductID)
			if err != nil {
				return err
			}
			price := p.SalePrice
			if it.Price != nil {
				price = *it.Price
			}
			sale.Items = append(sale.Items, Item{
				ProductID: p.ID,
				Name:      p.Name,
				SKU:       p.SKU,
				Quantity:  it.Quantity,
				Price:     price,
			})
		}
		sale.RecalculateTotal()
		if err := sale.Validate(ctx); err != nil {
			return err
		}

		if sale.CustomerID != nil {
			customer, err := s.partners.GetForUpdate(ctx, companyID, partners.CustomerRef(*sale.CustomerID))
			if err != nil {
				return err
			}
			if sale.OnCredit {
				if err := partners.CreditCheck(ctx, s.credit, customer, sale.Total); err != nil {
					return err
				}
			}
		}
		if sale.AccountID != nil {
			if _, err := s.accounts.GetByID(ctx, companyID, *sale.AccountID); err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		if _, err := s.engine.Post(ctx, companyID, saleSet(sale, actor)); err != nil {
			return err
		}

		return s.events.Publish(ctx, events.Event{
			CompanyID:     companyID,
			AggregateType: "Sale",
			AggregateID:   sale.ID,
			EventType:     events.SaleRecorded,
			Payload: map[string]any{
				"total":      sale.Total.String(),
				"onCredit":   sale.OnCredit,
				"accountId":  sale.AccountID,
				"customerId": sale.CustomerID,
				"items":      len(sale.Items),
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		logFailure(ctx, "sale failed", id.Nil(), err)
		return nil, err
	}

	logger.Info(ctx, "sale recorded", "id", sale.ID, "total", sale.Total.String(), "on_credit", sale.OnCredit)
	return sale, nil
}

// saleSet builds the stock requests and entries a sale posts.
func saleSet(sale *Sale, actor string) posting.Set {
	var set posting.Set
	for _, it := range sale.Items {
		set.Movements = append(set.Movements, stock.Request{
			ProductID: it.ProductID,
			Direction: stock.DirectionOut,
			Quantity:  it.Quantity,
			SaleID:    id.Ptr(sale.ID),
			Reason:    "sale: " + sale.ID.String(),

			TrackedOnly: true,
		})
	}
	if !sale.Total.IsPositive() {
		return set
	}

	desc := "POS sale " + sale.ID.String()
	newEntry := func(kind ledger.Kind) ledger.Entry {
		e := ledger.NewEntry(sale.CompanyID, kind, sale.Total, desc)
		e.Currency = sale.Currency
		e.SaleID = id.Ptr(sale.ID)
		e.CustomerID = sale.CustomerID
		e.CreatedBy = actor
		return e
	}

	if sale.CustomerID != nil {
		set.Entries = append(set.Entries, newEntry(ledger.KindReceivableAdjustment))
	}
	if !sale.OnCredit {
		income := newEntry(ledger.KindIncome)
		income.TargetAccountID = sale.AccountID
		set.Entries = append(set.Entries, income)
	}
	return set
}

// CancelSale returns the sale's tracked products to stock, cancels its
// entries and marks it cancelled.
func (s *Service) CancelSale(ctx context.Context, saleID id.ID) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "pos.CancelSale",
		trace.WithAttributes(attribute.String("sale.id", saleID.String())))
	defer span.End()

	var sale *Sale
	err := s.inTx(ctx, func(ctx context.Context, companyID id.ID) error {
		var err error
		sale, err = s.repo.GetForUpdate(ctx, companyID, saleID)
		if err != nil {
			return err
		}
		if sale.Cancelled {
			return apperror.NewInvalidStateTransition("sale", sale.ID, "cancelled", "cancel")
		}

		var set posting.Set
		for _, it := range sale.Items {
			set.Movements = append(set.Movements, stock.Request{
				ProductID: it.ProductID,
				Direction: stock.DirectionIn,
				Quantity:  it.Quantity,
				SaleID:    id.Ptr(sale.ID),
				Reason:    "sale cancel: " + sale.ID.String(),

				TrackedOnly: true,
			})
		}
		if _, err := s.engine.Post(ctx, companyID, set); err != nil {
			return err
		}

		now, actor := time.Now().UTC(), audit.Actor(ctx)
		cancelled, err := s.ledger.CancelBySale(ctx, companyID, sale.ID, now, actor)
		if err != nil {
			return fmt.Errorf("cancel entries: %w", err)
		}
		var also []partners.Ref
		if sale.CustomerID != nil {
			also = append(also, partners.CustomerRef(*sale.CustomerID))
		}
		if err := s.engine.Reverse(ctx, companyID, cancelled, also...); err != nil {
			return err
		}

		sale.Cancelled = true
		sale.CancelledAt = &now
		sale.CancelledBy = actor
		if err := s.repo.Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		if err := s.events.Publish(ctx, events.Event{
			CompanyID:     companyID,
			AggregateType: "Sale",
			AggregateID:   sale.ID,
			EventType:     events.SaleCancelled,
			Payload: map[string]any{
				"total":            sale.Total.String(),
				"cancelledEntries": len(cancelled),
			},
		}); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		return s.audit.Record(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "sale",
			EntityID:   sale.ID,
			Action:     audit.ActionCancel,
			UserID:     actor,
			Changes:    map[string]any{"total": sale.Total.String(), "cancelledEntries": len(cancelled)},
		})
	})
	if err != nil {
		span.RecordError(err)
		logFailure(ctx, "sale cancel failed", saleID, err)
		return nil, err
	}

	logger.Info(ctx, "sale cancelled", "id", sale.ID)
	return sale, nil
}

// Get retrieves a sale with its items.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*Sale, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, companyID, saleID)
}

// ListRecentSales returns the newest live sales.
func (s *Service) ListRecentSales(ctx context.Context, limit int) ([]*Sale, error) {
	companyID, err := tenant.CompanyID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.repo.ListRecent(ctx, companyID, limit)
}

func logFailure(ctx context.Context, msg string, saleID id.ID, err error) {
	if apperror.IsBusinessError(err) {
		logger.Warn(ctx, msg, "id", saleID, "error", err)
		return
	}
	logger.Error(ctx, msg, "id", saleID, "error", err)
}
