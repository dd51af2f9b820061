// Package memory provides an in-process implementation of every repository
// and of tx.Manager. Transactions are serialized and roll back by restoring
// a snapshot of the whole store, so tests exercise real atomicity.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"tally/internal/core/id"
	"tally/internal/core/tx"
	"tally/internal/domain/audit"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/catalogs/products"
	"tally/internal/domain/documents/invoices"
	"tally/internal/domain/documents/pos"
	"tally/internal/domain/events"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
	"tally/internal/domain/reports"
)

// state is everything a transaction can change.
type state struct {
	accounts  map[id.ID]*accounts.Account
	partners  map[partners.Ref]*partners.Partner
	products  map[id.ID]*products.Product
	entries   []ledger.Entry
	movements []stock.Movement
	invoices  map[id.ID]*invoices.Invoice
	lines     map[id.ID][]invoices.Line
	sales     map[id.ID]*pos.Sale
	outbox    []events.Event
	audit     []audit.Record
	sequences map[string]int64
}

func newState() *state {
	return &state{
		accounts:  make(map[id.ID]*accounts.Account),
		partners:  make(map[partners.Ref]*partners.Partner),
		products:  make(map[id.ID]*products.Product),
		invoices:  make(map[id.ID]*invoices.Invoice),
		lines:     make(map[id.ID][]invoices.Line),
		sales:     make(map[id.ID]*pos.Sale),
		sequences: make(map[string]int64),
	}
}

// clone deep-copies the state. Stored entities are replaced, never mutated
// in place, so copying the pointed-to structs is enough.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range st.partners {
		p := *v
		c.partners[k] = &p
	}
	for k, v := range st.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range st.invoices {
		inv := *v
		c.invoices[k] = &inv
	}
	for k, v := range st.lines {
		c.lines[k] = slices.Clone(v)
	}
	for k, v := range st.sales {
		s := *v
		s.Items = slices.Clone(v.Items)
		c.sales[k] = &s
	}
	c.entries = slices.Clone(st.entries)
	c.movements = slices.Clone(st.movements)
	c.outbox = slices.Clone(st.outbox)
	c.audit = slices.Clone(st.audit)
	c.sequences = maps.Clone(st.sequences)
	return c
}

// Store is the in-memory database.
type Store struct {
	// txMu serializes transactions; mu guards st for each single operation.
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories.
func (s *Store) Accounts() accounts.Repository { return accountRepo{s} }
func (s *Store) Partners() partners.Repository { return partnerRepo{s} }
func (s *Store) Products() products.Repository { return productRepo{s} }
func (s *Store) Ledger() ledger.Repository { return ledgerRepo{s} }
func (s *Store) Stock() stock.Repository { return stockRepo{s} }
func (s *Store) Invoices() invoices.Repository { return invoiceRepo{s} }
func (s *Store) Sales() pos.Repository { return saleRepo{s} }
func (s *Store) TxManager() *TxManager { return &TxManager{s: s} }
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }
func (s *Store) AuditLog() *AuditLog { return &AuditLog{s: s} }
func (s *Store) Numerator() *Numerator { return &Numerator{s: s} }
func (s *Store) Reports() reports.Repository { return reportRepo{s} }

func (s *Store) read() (*state, func()) {
	s.mu.RLock()
	return s.st, s.mu.RUnlock
}

func (s *Store) write() (*state, func()) {
	s.mu.Lock()
	return s.st, s.mu.Unlock
}

// ListCompanies returns every company owning an account, partner or invoice.
func (s *Store) ListCompanies(_ context.Context) ([]id.ID, error) {
	st, unlock := s.read()
	defer unlock()

	seen := make(map[id.ID]bool)
	for _, a := range st.accounts {
		seen[a.CompanyID] = true
	}
	for _, p := range st.partners {
		seen[p.CompanyID] = true
	}
	for _, inv := range st.invoices {
		seen[inv.CompanyID] = true
	}
	out := slices.Collect(maps.Keys(seen))
	slices.SortFunc(out, compareIDs)
	return out, nil
}

func compareIDs(a, b id.ID) int {
	switch {
	case id.Less(a, b):
		return -1
	case id.Less(b, a):
		return 1
	}
	return 0
}

// --- Transactions ---

type txKey struct{}

var errReadOnly = errors.New("read-only transaction")

// TxManager implements tx.ReadOnlyManager over a Store.
type TxManager struct {
	s *Store
}

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// RunInTransaction executes fn with the store locked against other
// transactions. On error or panic the store is restored to its state before
// the call. Nested calls reuse the current transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == m.s {
		return fn(ctx)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.RLock()
	snapshot := m.s.st.clone()
	m.s.mu.RUnlock()

	rollback := func() {
		m.s.mu.Lock()
		m.s.st = snapshot
		m.s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, m.s)); err != nil {
		rollback()
		return err
	}
	return nil
}

// ReadOnly runs fn inside a transaction whose writes are always discarded.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return errReadOnly
	})
	if errors.Is(err, errReadOnly) {
		return nil
	}
	return err
}
