// Package pgstore assembles the PostgreSQL repositories into the storage of
// an app.Services graph.
package pgstore

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"tally/internal/app"
	"tally/internal/core/id"
	"tally/internal/infrastructure/storage/postgres"
	"tally/internal/infrastructure/storage/postgres/catalog_repo"
	"tally/internal/infrastructure/storage/postgres/document_repo"
	"tally/internal/infrastructure/storage/postgres/register_repo"
	"tally/internal/infrastructure/storage/postgres/report_repo"
	"tally/pkg/numerator"
)

// Store holds one repository of each kind over a shared pool.
type Store struct {
	pool *postgres.Pool
	txm  *postgres.TxManager

	accounts  *catalog_repo.AccountRepo
	partners  *catalog_repo.PartnerRepo
	products  *catalog_repo.ProductRepo
	ledger    *register_repo.LedgerRepo
	stock     *register_repo.StockRepo
	invoices  *document_repo.InvoiceRepo
	sales     *document_repo.SaleRepo
	reports   *report_repo.ReportRepo
	outbox    *postgres.OutboxPublisher
	audit     *postgres.AuditService
	numerator *numerator.Service
}

// New builds the store over pool.
func New(pool *postgres.Pool) (*Store, error) {
	txm := postgres.NewTxManager(pool)

	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}

	return &Store{
		pool:     pool,
		txm:      txm,
		accounts: catalog_repo.NewAccountRepo(txm),
		partners: catalog_repo.NewPartnerRepo(txm),
		products: catalog_repo.NewProductRepo(txm),
		ledger:   register_repo.NewLedgerRepo(txm),
		stock:    register_repo.NewStockRepo(txm),
		invoices: document_repo.NewInvoiceRepo(txm),
		sales:    document_repo.NewSaleRepo(txm),
		reports:  report_repo.NewReportRepo(txm),
		outbox:   postgres.NewOutboxPublisher(txm),
		audit:    auditSvc,
		numerator: numerator.NewWithQuerierFunc(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
	}, nil
}

// TxManager returns the store's transaction manager.
func (s *Store) TxManager() *postgres.TxManager { return s.txm }

// Audit returns the audit log service.
func (s *Store) Audit() *postgres.AuditService { return s.audit }

// Repositories exposes the store as the storage of an app.Services graph.
func (s *Store) Repositories() app.Repositories {
	return app.Repositories{
		Accounts:  s.accounts,
		Partners:  s.partners,
		Products:  s.products,
		Ledger:    s.ledger,
		Stock:     s.stock,
		Invoices:  s.invoices,
		Sales:     s.sales,
		Reports:   s.reports,
		Companies: s,
		TxManager: s.txm,
		Numerator: s.numerator,
		Events:    s.outbox,
		Audit:     s.audit,
	}
}

// ListCompanies returns every company owning an account or a partner.
func (s *Store) ListCompanies(ctx context.Context) ([]id.ID, error) {
	const q = `
		SELECT company_id FROM accounts
		UNION
		SELECT company_id FROM partners
		ORDER BY company_id`

	var ids []id.ID
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &ids, q); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return ids, nil
}
