package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/documents/invoices"
	"tally/internal/domain/documents/pos"
)

// --- Invoices ---

type invoiceRepo struct{ s *Store }

func (r invoiceRepo) Create(_ context.Context, inv *invoices.Invoice) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, exists := st.invoices[inv.ID]; exists {
		return apperror.NewConflict("invoice already exists").WithDetail("id", inv.ID)
	}
	for _, other := range st.invoices {
		if other.CompanyID == inv.CompanyID && other.Number == inv.Number {
			return apperror.NewConflict("invoice number already used").WithDetail("number", inv.Number)
		}
	}
	c := *inv
	c.Lines = nil
	st.invoices[inv.ID] = &c
	return nil
}

func (r invoiceRepo) get(st *state, companyID, invoiceID id.ID) (*invoices.Invoice, error) {
	inv, ok := st.invoices[invoiceID]
	if !ok || !inv.BelongsTo(companyID) {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}
	return inv, nil
}

func (r invoiceRepo) GetByID(_ context.Context, companyID, invoiceID id.ID) (*invoices.Invoice, error) {
	st, unlock := r.s.read()
	defer unlock()

	inv, err := r.get(st, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	c := *inv
	return &c, nil
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, companyID, invoiceID id.ID) (*invoices.Invoice, error) {
	return r.GetByID(ctx, companyID, invoiceID)
}

func (r invoiceRepo) Update(_ context.Context, inv *invoices.Invoice) error {
	st, unlock := r.s.write()
	defer unlock()

	cur, err := r.get(st, inv.CompanyID, inv.ID)
	if err != nil {
		return err
	}
	if cur.Version != inv.Version {
		return apperror.NewConcurrentModification("invoice", inv.ID)
	}
	c := *inv
	c.Lines = nil
	c.Version = cur.Version + 1
	c.UpdatedAt = time.Now().UTC()
	st.invoices[inv.ID] = &c
	inv.SetVersion(c.Version)
	inv.UpdatedAt = c.UpdatedAt
	return nil
}

func (r invoiceRepo) Delete(_ context.Context, companyID, invoiceID id.ID) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, err := r.get(st, companyID, invoiceID); err != nil {
		return err
	}
	delete(st.invoices, invoiceID)
	delete(st.lines, invoiceID)
	return nil
}

func (r invoiceRepo) GetLines(_ context.Context, companyID, invoiceID id.ID) ([]invoices.Line, error) {
	st, unlock := r.s.read()
	defer unlock()

	if _, err := r.get(st, companyID, invoiceID); err != nil {
		return nil, err
	}
	return slices.Clone(st.lines[invoiceID]), nil
}

func (r invoiceRepo) SaveLines(_ context.Context, companyID, invoiceID id.ID, lines []invoices.Line) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, err := r.get(st, companyID, invoiceID); err != nil {
		return err
	}
	st.lines[invoiceID] = slices.Clone(lines)
	return nil
}

// List returns matching invoices, newest date first.
func (r invoiceRepo) List(_ context.Context, companyID id.ID, filter invoices.ListFilter) (domain.ListResult[*invoices.Invoice], error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []*invoices.Invoice
	for _, inv := range st.invoices {
		if inv.BelongsTo(companyID) && filter.Matches(inv) {
			c := *inv
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *invoices.Invoice) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.Number, a.Number)
	})
	return domain.ListResult[*invoices.Invoice]{
		Items:      page(out, filter.Limit, filter.Offset),
		TotalCount: int64(len(out)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func (r invoiceRepo) SumOpenTotals(_ context.Context, companyID id.ID, ref partners.Ref) (types.Money, error) {
	st, unlock := r.s.read()
	defer unlock()

	sum := types.Zero()
	for _, inv := range st.invoices {
		if inv.BelongsTo(companyID) && inv.Partner() == ref && inv.Status.Open() {
			sum = sum.Add(inv.TotalAmount)
		}
	}
	return sum, nil
}

func (r invoiceRepo) ExistsForPartner(_ context.Context, companyID id.ID, ref partners.Ref) (bool, error) {
	st, unlock := r.s.read()
	defer unlock()

	for _, inv := range st.invoices {
		if inv.BelongsTo(companyID) && inv.Partner() == ref {
			return true, nil
		}
	}
	return false, nil
}

// --- Sales ---

type saleRepo struct{ s *Store }

func cloneSale(s *pos.Sale) *pos.Sale {
	c := *s
	c.Items = slices.Clone(s.Items)
	return &c
}

func (r saleRepo) Create(_ context.Context, sale *pos.Sale) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, exists := st.sales[sale.ID]; exists {
		return apperror.NewConflict("sale already exists").WithDetail("id", sale.ID)
	}
	st.sales[sale.ID] = cloneSale(sale)
	return nil
}

func (r saleRepo) get(st *state, companyID, saleID id.ID) (*pos.Sale, error) {
	sale, ok := st.sales[saleID]
	if !ok || !sale.BelongsTo(companyID) {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	return sale, nil
}

func (r saleRepo) GetByID(_ context.Context, companyID, saleID id.ID) (*pos.Sale, error) {
	st, unlock := r.s.read()
	defer unlock()

	sale, err := r.get(st, companyID, saleID)
	if err != nil {
		return nil, err
	}
	return cloneSale(sale), nil
}

func (r saleRepo) GetForUpdate(ctx context.Context, companyID, saleID id.ID) (*pos.Sale, error) {
	return r.GetByID(ctx, companyID, saleID)
}

// Update writes the header; items are immutable.
func (r saleRepo) Update(_ context.Context, sale *pos.Sale) error {
	st, unlock := r.s.write()
	defer unlock()

	cur, err := r.get(st, sale.CompanyID, sale.ID)
	if err != nil {
		return err
	}
	if cur.Version != sale.Version {
		return apperror.NewConcurrentModification("sale", sale.ID)
	}
	c := cloneSale(sale)
	c.Items = cur.Items
	c.Version = cur.Version + 1
	c.UpdatedAt = time.Now().UTC()
	st.sales[sale.ID] = c
	sale.SetVersion(c.Version)
	return nil
}

func (r saleRepo) ListRecent(_ context.Context, companyID id.ID, limit int) ([]*pos.Sale, error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []*pos.Sale
	for _, sale := range st.sales {
		if sale.BelongsTo(companyID) && !sale.Cancelled {
			out = append(out, cloneSale(sale))
		}
	}
	slices.SortFunc(out, func(a, b *pos.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(b.ID, a.ID)
	})
	return page(out, limit, 0), nil
}
