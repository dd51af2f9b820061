package memory

import "tally/internal/app"

// Repositories exposes the store as the storage of an app.Services graph.
func (s *Store) Repositories() app.Repositories {
	return app.Repositories{
		Accounts:  s.Accounts(),
		Partners:  s.Partners(),
		Products:  s.Products(),
		Ledger:    s.Ledger(),
		Stock:     s.Stock(),
		Invoices:  s.Invoices(),
		Sales:     s.Sales(),
		Reports:   s.Reports(),
		Companies: s,
		TxManager: s.TxManager(),
		Numerator: s.Numerator(),
		Events:    s.Outbox(),
		Audit:     s.AuditLog(),
	}
}
