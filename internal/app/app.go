// Package app wires repositories into the domain services. Commands and
// tests build the same graph; only the storage behind it differs.
package app

import (
	"tally/internal/core/numerator"
	"tally/internal/core/security"
	"tally/internal/core/tx"
	"tally/internal/core/types"
	"tally/internal/domain/audit"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/catalogs/products"
	"tally/internal/domain/documents/invoices"
	"tally/internal/domain/documents/pos"
	"tally/internal/domain/documents/transactions"
	"tally/internal/domain/events"
	"tally/internal/domain/posting"
	"tally/internal/domain/reconcile"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
	"tally/internal/domain/reports"
)

// Repositories is the storage a Services graph runs on.
type Repositories struct {
	Accounts  accounts.Repository
	Partners  partners.Repository
	Products  products.Repository
	Ledger    ledger.Repository
	Stock     stock.Repository
	Invoices  invoices.Repository
	Sales     pos.Repository
	Reports   reports.Repository
	Companies reconcile.Companies

	TxManager tx.Manager
	Numerator numerator.Generator
	Events    events.Publisher
	Audit     audit.Recorder
}

// Options tunes business rules.
type Options struct {
	Tolerance   types.Money
	Credit      *security.CreditRule
	Concurrency int
}

// Services is the full set of domain services.
type Services struct {
	Accounts     *accounts.Service
	Invoices     *invoices.Service
	Transactions *transactions.Service
	POS          *pos.Service
	Reports      *reports.Service
	Reconciler   *reconcile.Reconciler
	Batch        *reconcile.Batch
	Recorder     *stock.Recorder
	Engine       *posting.Engine
}

// New builds every service over repos.
func New(repos Repositories, opts Options) *Services {
	if opts.Tolerance.IsZero() {
		opts.Tolerance = reconcile.DefaultTolerance
	}

	reconciler := reconcile.New(reconcile.Config{
		Ledger:    repos.Ledger,
		Accounts:  repos.Accounts,
		Partners:  repos.Partners,
		Invoices:  repos.Invoices,
		TxManager: repos.TxManager,
		Tolerance: opts.Tolerance,
	})
	recorder := stock.NewRecorder(repos.Stock, repos.Products)
	engine := posting.NewEngine(recorder, repos.Ledger, repos.Accounts, repos.Partners, reconciler)

	svc := &Services{
		Reconciler: reconciler,
		Recorder:   recorder,
		Engine:     engine,
		Accounts: accounts.NewService(accounts.Deps{
			Repo:      repos.Accounts,
			Partners:  repos.Partners,
			Ledger:    repos.Ledger,
			Engine:    engine,
			Invoices:  repos.Invoices,
			Events:    repos.Events,
			Audit:     repos.Audit,
			Tolerance: opts.Tolerance,
			TxManager: repos.TxManager,
		}),
		Invoices: invoices.NewService(invoices.Deps{
			Repo:      repos.Invoices,
			Partners:  repos.Partners,
			Products:  repos.Products,
			Accounts:  repos.Accounts,
			Ledger:    repos.Ledger,
			Recorder:  recorder,
			Engine:    engine,
			Numerator: repos.Numerator,
			Events:    repos.Events,
			Audit:     repos.Audit,
			Credit:    opts.Credit,
			TxManager: repos.TxManager,
		}),
		Transactions: transactions.NewService(transactions.Deps{
			Ledger:    repos.Ledger,
			Accounts:  repos.Accounts,
			Partners:  repos.Partners,
			Engine:    engine,
			Events:    repos.Events,
			Audit:     repos.Audit,
			TxManager: repos.TxManager,
		}),
		POS: pos.NewService(pos.Deps{
			Repo:      repos.Sales,
			Products:  repos.Products,
			Accounts:  repos.Accounts,
			Partners:  repos.Partners,
			Ledger:    repos.Ledger,
			Engine:    engine,
			Events:    repos.Events,
			Audit:     repos.Audit,
			Credit:    opts.Credit,
			TxManager: repos.TxManager,
		}),
		Reports: reports.NewService(repos.Reports, repos.TxManager),
	}
	if repos.Companies != nil {
		svc.Batch = reconcile.NewBatch(reconciler, repos.Companies, opts.Concurrency)
	}
	return svc
}
