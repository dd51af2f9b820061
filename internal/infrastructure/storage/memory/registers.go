package memory

import (
	"context"
	"slices"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/registers/ledger"
	"tally/internal/domain/registers/stock"
)

// --- Ledger ---

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Append(_ context.Context, entries []ledger.Entry) error {
	st, unlock := r.s.write()
	defer unlock()

	for _, e := range entries {
		if r.index(st, e.CompanyID, e.ID) >= 0 {
			return apperror.NewConflict("entry already exists").WithDetail("id", e.ID)
		}
	}
	st.entries = append(st.entries, entries...)
	return nil
}

func (r ledgerRepo) index(st *state, companyID, entryID id.ID) int {
	return slices.IndexFunc(st.entries, func(e ledger.Entry) bool {
		return e.ID == entryID && e.CompanyID == companyID
	})
}

func (r ledgerRepo) GetByID(_ context.Context, companyID, entryID id.ID) (*ledger.Entry, error) {
	st, unlock := r.s.read()
	defer unlock()

	i := r.index(st, companyID, entryID)
	if i < 0 {
		return nil, apperror.NewNotFound("entry", entryID)
	}
	e := st.entries[i]
	return &e, nil
}

func (r ledgerRepo) GetForUpdate(ctx context.Context, companyID, entryID id.ID) (*ledger.Entry, error) {
	return r.GetByID(ctx, companyID, entryID)
}

func (r ledgerRepo) Update(_ context.Context, e *ledger.Entry) error {
	st, unlock := r.s.write()
	defer unlock()

	i := r.index(st, e.CompanyID, e.ID)
	if i < 0 {
		return apperror.NewNotFound("entry", e.ID)
	}
	if st.entries[i].Version != e.Version {
		return apperror.NewConcurrentModification("entry", e.ID)
	}
	e.Version++
	e.UpdatedAt = time.Now().UTC()
	st.entries[i] = *e
	return nil
}

// cancelWhere marks matching live entries cancelled and returns them in
// their cancelled form.
func (r ledgerRepo) cancelWhere(companyID id.ID, at time.Time, actor string, match func(*ledger.Entry) bool) []ledger.Entry {
	st, unlock := r.s.write()
	defer unlock()

	var out []ledger.Entry
	for i := range st.entries {
		e := &st.entries[i]
		if e.CompanyID != companyID || e.Cancelled || !match(e) {
			continue
		}
		e.Cancel(at, actor)
		out = append(out, *e)
	}
	return out
}

func (r ledgerRepo) CancelByInvoice(_ context.Context, companyID, invoiceID id.ID, at time.Time, actor string) ([]ledger.Entry, error) {
	return r.cancelWhere(companyID, at, actor, func(e *ledger.Entry) bool {
		return id.Equal(e.InvoiceID, invoiceID)
	}), nil
}

func (r ledgerRepo) CancelBySale(_ context.Context, companyID, saleID id.ID, at time.Time, actor string) ([]ledger.Entry, error) {
	return r.cancelWhere(companyID, at, actor, func(e *ledger.Entry) bool {
		return id.Equal(e.SaleID, saleID)
	}), nil
}

func (r ledgerRepo) Cancel(_ context.Context, companyID id.ID, entryIDs []id.ID, at time.Time, actor string) error {
	r.cancelWhere(companyID, at, actor, func(e *ledger.Entry) bool {
		return slices.Contains(entryIDs, e.ID)
	})
	return nil
}

func (r ledgerRepo) live(companyID id.ID, match func(*ledger.Entry) bool) []ledger.Entry {
	st, unlock := r.s.read()
	defer unlock()

	var out []ledger.Entry
	for i := range st.entries {
		e := &st.entries[i]
		if e.CompanyID == companyID && !e.Cancelled && match(e) {
			out = append(out, *e)
		}
	}
	return out
}

func (r ledgerRepo) ListForAccount(_ context.Context, companyID, accountID id.ID) ([]ledger.Entry, error) {
	return r.live(companyID, func(e *ledger.Entry) bool {
		return id.Equal(e.SourceAccountID, accountID) || id.Equal(e.TargetAccountID, accountID)
	}), nil
}

func (r ledgerRepo) ListForPartner(_ context.Context, companyID id.ID, ref partners.Ref) ([]ledger.Entry, error) {
	return r.live(companyID, func(e *ledger.Entry) bool {
		p, ok := e.Partner()
		return ok && p == ref
	}), nil
}

func (r ledgerRepo) HasLiveForAccount(ctx context.Context, companyID, accountID id.ID) (bool, error) {
	entries, err := r.ListForAccount(ctx, companyID, accountID)
	return len(entries) > 0, err
}

func (r ledgerRepo) HasLiveForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) (bool, error) {
	entries, err := r.ListForPartner(ctx, companyID, ref)
	return len(entries) > 0, err
}

// List returns matching entries, newest first.
func (r ledgerRepo) List(_ context.Context, companyID id.ID, filter ledger.ListFilter) ([]ledger.Entry, error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []ledger.Entry
	for i := range st.entries {
		e := &st.entries[i]
		if e.CompanyID == companyID && filter.Matches(e) {
			out = append(out, *e)
		}
	}
	slices.SortStableFunc(out, func(a, b ledger.Entry) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}
		return compareIDs(b.ID, a.ID)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// --- Stock ---

type stockRepo struct{ s *Store }

func (r stockRepo) CreateMovements(_ context.Context, movements []stock.Movement) error {
	st, unlock := r.s.write()
	defer unlock()

	st.movements = append(st.movements, movements...)
	return nil
}

func (r stockRepo) GetMovementsByInvoice(_ context.Context, companyID, invoiceID id.ID) ([]stock.Movement, error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []stock.Movement
	for _, m := range st.movements {
		if m.CompanyID == companyID && id.Equal(m.InvoiceID, invoiceID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r stockRepo) DeleteMovementsByInvoice(_ context.Context, companyID, invoiceID id.ID) error {
	st, unlock := r.s.write()
	defer unlock()

	st.movements = slices.DeleteFunc(st.movements, func(m stock.Movement) bool {
		return m.CompanyID == companyID && id.Equal(m.InvoiceID, invoiceID)
	})
	return nil
}

func (r stockRepo) GetMovementHistory(_ context.Context, companyID, productID id.ID, filter stock.MovementFilter) ([]stock.Movement, error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []stock.Movement
	for _, m := range st.movements {
		if m.CompanyID != companyID || m.ProductID != productID {
			continue
		}
		if filter.Direction != nil && m.Direction != *filter.Direction {
			continue
		}
		if filter.FromDate != nil && m.OccurredAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && !m.OccurredAt.Before(*filter.ToDate) {
			continue
		}
		out = append(out, m)
	}
	slices.Reverse(out)
	return page(out, filter.Limit, filter.Offset), nil
}

// page applies limit and offset; a non-positive limit returns everything.
func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
