package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/documents/invoices"
	"tally/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable     = "invoices"
	invoiceLinesTable = "invoice_lines"
)

var (
	invoiceColumns = postgres.ExtractDBColumns[invoices.Invoice]()
	lineColumns    = postgres.ExtractDBColumns[invoices.Line]()
	// lines carry their owner in addition to the struct fields
	lineInsertColumns = append([]string{"invoice_id", "company_id"}, lineColumns...)
)

// InvoiceRepo implements invoices.Repository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoices.Invoice]
}

var _ invoices.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txm, invoicesTable, "invoice", invoiceColumns,
			func() *invoices.Invoice { return &invoices.Invoice{} }),
	}
}

// Update writes the header with optimistic locking.
func (r *InvoiceRepo) Update(ctx context.Context, inv *invoices.Invoice) error {
	version, at, err := r.BaseDocumentRepo.Update(ctx, inv)
	if err != nil {
		return err
	}
	inv.SetVersion(version)
	inv.UpdatedAt = at
	return nil
}

// GetLines returns the invoice lines in line order.
func (r *InvoiceRepo) GetLines(ctx context.Context, companyID, invoiceID id.ID) ([]invoices.Line, error) {
	if _, err := r.GetByID(ctx, companyID, invoiceID); err != nil {
		return nil, err
	}
	q := r.Builder().
		Select(lineColumns...).
		From(invoiceLinesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID, "company_id": companyID}).
		OrderBy("line_no")

	var lines []invoices.Line
	if err := r.selectAll(ctx, &lines, q); err != nil {
		return nil, err
	}
	return lines, nil
}

// SaveLines replaces the invoice lines.
func (r *InvoiceRepo) SaveLines(ctx context.Context, companyID, invoiceID id.ID, lines []invoices.Line) error {
	rows := make([][]any, 0, len(lines))
	for i := range lines {
		row := append([]any{invoiceID, companyID}, postgres.Values(&lines[i], lineColumns)...)
		rows = append(rows, row)
	}
	return r.replaceRows(ctx, invoiceLinesTable, "invoice_id", companyID, invoiceID, lineInsertColumns, rows)
}

// List returns matching invoices, newest date first.
func (r *InvoiceRepo) List(ctx context.Context, companyID id.ID, filter invoices.ListFilter) (domain.ListResult[*invoices.Invoice], error) {
	q := applyInvoiceFilter(r.baseSelect(companyID), filter)

	total, err := r.count(ctx, q)
	if err != nil {
		return domain.ListResult[*invoices.Invoice]{}, err
	}

	q = q.OrderBy("invoice_date DESC", "number DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	var items []*invoices.Invoice
	if err := r.selectAll(ctx, &items, q); err != nil {
		return domain.ListResult[*invoices.Invoice]{}, err
	}
	return domain.ListResult[*invoices.Invoice]{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// applyInvoiceFilter mirrors invoices.ListFilter.Matches in SQL.
func applyInvoiceFilter(q squirrel.SelectBuilder, f invoices.ListFilter) squirrel.SelectBuilder {
	if f.Type != nil {
		q = q.Where(squirrel.Eq{"type": *f.Type})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.PartnerID != nil {
		q = q.Where(squirrel.Eq{"partner_id": *f.PartnerID})
	}
	if f.DueBefore != nil {
		q = q.Where(squirrel.LtOrEq{"due_date": *f.DueBefore})
	}
	if f.Unpaid {
		q = q.Where(squirrel.Eq{"status": invoices.StatusApproved}).
			Where("total_amount > paid_amount")
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"notes": pattern},
		})
	}
	return q
}

func partnerCond(ref partners.Ref) squirrel.Eq {
	return squirrel.Eq{"partner_kind": ref.Kind, "partner_id": ref.ID}
}

// SumOpenTotals sums totals of approved and paid invoices of the partner.
func (r *InvoiceRepo) SumOpenTotals(ctx context.Context, companyID id.ID, ref partners.Ref) (types.Money, error) {
	sql, args, err := r.Builder().
		Select("COALESCE(SUM(total_amount), 0)").
		From(invoicesTable).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(partnerCond(ref)).
		Where(squirrel.Eq{"status": []invoices.Status{invoices.StatusApproved, invoices.StatusPaid}}).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build sum: %w", err)
	}
	var sum types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return types.Zero(), fmt.Errorf("sum open invoices: %w", err)
	}
	return sum, nil
}

// ExistsForPartner reports whether any invoice references the partner.
func (r *InvoiceRepo) ExistsForPartner(ctx context.Context, companyID id.ID, ref partners.Ref) (bool, error) {
	sub := r.Builder().Select("1").
		From(invoicesTable).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(partnerCond(ref))
	sql, args, err := r.Builder().Select().Column(squirrel.Expr("EXISTS (?)", sub)).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists invoices: %w", err)
	}
	return exists, nil
}
