package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

// Invoice is an invoices row, optionally with its lines.
type Invoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    *string         `json:"customer_id"`
	CustomerName  *string         `json:"customer_name,omitempty"`
	CustomerPhone *string         `json:"customer_phone,omitempty"`
	GoldRate      decimal.Decimal `json:"gold_rate"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	GoldValue     decimal.Decimal `json:"gold_value"`
	MakingCharges decimal.Decimal `json:"making_charges"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []InvoiceLine   `json:"items,omitempty"`
}

// InvoiceLine is an invoice_items row joined with the catalogue fields of its
// item. ItemName, SKU and MetalType are nil once the item has been deleted.
type InvoiceLine struct {
	ID            string          `json:"id"`
	InvoiceID     string          `json:"invoice_id"`
	ItemID        string          `json:"item_id"`
	ItemName      *string         `json:"item_name"`
	SKU           *string         `json:"sku"`
	MetalType     *string         `json:"metal_type"`
	Weight        decimal.Decimal `json:"weight"`
	Quantity      int             `json:"quantity"`
	MakingCharge  decimal.Decimal `json:"making_charge"`
	GoldValue     decimal.Decimal `json:"gold_value"`
	MakingCharges decimal.Decimal `json:"making_charges"`
	Price         decimal.Decimal `json:"price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// SaleLine is an invoice line together with its invoice date and customer.
type SaleLine struct {
	InvoiceLine
	SoldAt     time.Time
	CustomerID *string
}

// InvoiceFilter narrows invoice and line queries. Zero values leave a bound open.
type InvoiceFilter struct {
	From       *time.Time
	To         *time.Time
	CustomerID string
	InvoiceID  string
	Limit      int
}

// InvoicesRepo reads and writes invoices of the current owner.
type InvoicesRepo struct {
	DB db.DBTX
}

// WithTx returns a copy bound to tx.
func (r InvoicesRepo) WithTx(tx pgx.Tx) InvoicesRepo {
	return InvoicesRepo{DB: tx}
}

const invoiceSelect = `SELECT i.id, i.invoice_number, i.customer_id, c.name, c.phone,
  i.gold_rate, i.gst_rate, i.gold_value, i.making_charges, i.taxable_amount,
  i.gst_amount, i.total_amount, i.created_at
FROM invoices i
LEFT JOIN customers c ON c.id = i.customer_id AND c.owner_id = i.owner_id`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv        Invoice
		id, custID pgtype.UUID
	)
	err := row.Scan(&id, &inv.InvoiceNumber, &custID, &inv.CustomerName, &inv.CustomerPhone,
		db.Dec(&inv.GoldRate), db.Dec(&inv.GSTRate), db.Dec(&inv.GoldValue), db.Dec(&inv.MakingCharges),
		db.Dec(&inv.TaxableAmount), db.Dec(&inv.GSTAmount), db.Dec(&inv.TotalAmount), &inv.CreatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.ID = db.UUIDString(id)
	inv.CustomerID = stringPtr(custID)
	return inv, nil
}

type filterArgs struct {
	owner    pgtype.UUID
	from     *time.Time
	to       *time.Time
	customer pgtype.UUID
	invoice  pgtype.UUID
}

func (r InvoicesRepo) args(ctx context.Context, f InvoiceFilter) (filterArgs, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return filterArgs{}, err
	}
	customer, err := optionalUUID(&f.CustomerID)
	if err != nil {
		return filterArgs{}, err
	}
	invoice, err := optionalUUID(&f.InvoiceID)
	if err != nil {
		return filterArgs{}, err
	}
	return filterArgs{owner: oid, from: f.From, to: f.To, customer: customer, invoice: invoice}, nil
}

const invoiceWhere = `
WHERE i.owner_id = $1
  AND ($2::timestamptz IS NULL OR i.created_at >= $2::timestamptz)
  AND ($3::timestamptz IS NULL OR i.created_at < $3::timestamptz)
  AND ($4::uuid IS NULL OR i.customer_id = $4::uuid)
  AND ($5::uuid IS NULL OR i.id = $5::uuid)`

// List returns invoices matching f, newest first.
func (r InvoicesRepo) List(ctx context.Context, f InvoiceFilter) ([]Invoice, error) {
	a, err := r.args(ctx, f)
	if err != nil {
		return nil, err
	}
	sql := invoiceSelect + invoiceWhere + `
ORDER BY i.created_at DESC, i.id`
	params := []any{a.owner, a.from, a.to, a.customer, a.invoice}
	if f.Limit > 0 {
		sql += ` LIMIT $6`
		params = append(params, f.Limit)
	}
	rows, err := r.DB.Query(ctx, sql, params...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, inv)
	}
	return out, mapErr(rows.Err())
}

// Lines returns the sold lines of invoices matching f. Limit is ignored.
func (r InvoicesRepo) Lines(ctx context.Context, f InvoiceFilter) ([]SaleLine, error) {
	a, err := r.args(ctx, f)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT ii.id, ii.invoice_id, ii.item_id, ji.name, ji.sku, ji.metal_type,
  ii.weight, ii.quantity, ii.making_charge, ii.gold_value, ii.making_charges, ii.price, ii.line_total,
  i.created_at, i.customer_id
FROM invoice_items ii
JOIN invoices i ON i.id = ii.invoice_id
LEFT JOIN jewellery_items ji ON ji.id = ii.item_id AND ji.owner_id = i.owner_id`+invoiceWhere+`
ORDER BY i.created_at DESC, ii.id`, a.owner, a.from, a.to, a.customer, a.invoice)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := make([]SaleLine, 0)
	for rows.Next() {
		var (
			ln                      SaleLine
			id, invID, itemID, cust pgtype.UUID
		)
		err := rows.Scan(&id, &invID, &itemID, &ln.ItemName, &ln.SKU, &ln.MetalType,
			db.Dec(&ln.Weight), &ln.Quantity, db.Dec(&ln.MakingCharge), db.Dec(&ln.GoldValue),
			db.Dec(&ln.MakingCharges), db.Dec(&ln.Price), db.Dec(&ln.LineTotal),
			&ln.SoldAt, &cust)
		if err != nil {
			return nil, mapErr(err)
		}
		ln.ID = db.UUIDString(id)
		ln.InvoiceID = db.UUIDString(invID)
		ln.ItemID = db.UUIDString(itemID)
		ln.CustomerID = stringPtr(cust)
		out = append(out, ln)
	}
	return out, mapErr(rows.Err())
}

// Get returns one invoice with its lines.
func (r InvoicesRepo) Get(ctx context.Context, id string) (Invoice, error) {
	if _, err := uuidValue(id); err != nil {
		return Invoice{}, err
	}
	invoices, err := r.List(ctx, InvoiceFilter{InvoiceID: id, Limit: 1})
	if err != nil {
		return Invoice{}, err
	}
	if len(invoices) == 0 {
		return Invoice{}, ErrNotFound
	}
	lines, err := r.Lines(ctx, InvoiceFilter{InvoiceID: id})
	if err != nil {
		return Invoice{}, err
	}
	return AttachLines(invoices, lines)[0], nil
}

// AttachLines groups lines under their invoices, keeping line order.
func AttachLines(invoices []Invoice, lines []SaleLine) []Invoice {
	byInvoice := make(map[string][]InvoiceLine, len(invoices))
	for _, ln := range lines {
		byInvoice[ln.InvoiceID] = append(byInvoice[ln.InvoiceID], ln.InvoiceLine)
	}
	for i := range invoices {
		invoices[i].Items = byInvoice[invoices[i].ID]
		if invoices[i].Items == nil {
			invoices[i].Items = []InvoiceLine{}
		}
	}
	return invoices
}

// NextSequence returns the ordinal the owner's next invoice should carry.
func (r InvoicesRepo) NextSequence(ctx context.Context) (int, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM invoices WHERE owner_id = $1`, oid).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n + 1, nil
}

// Create stores an invoice header and its lines. Callers wrap it in a
// transaction together with the stock decrements.
func (r InvoicesRepo) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Invoice{}, err
	}
	custID, err := optionalUUID(inv.CustomerID)
	if err != nil {
		return Invoice{}, err
	}
	var id pgtype.UUID
	err = r.DB.QueryRow(ctx, `INSERT INTO invoices
  (owner_id, invoice_number, customer_id, gold_rate, gst_rate, gold_value,
   making_charges, taxable_amount, gst_amount, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`,
		oid, inv.InvoiceNumber, custID, db.Numeric(inv.GoldRate), db.Numeric(inv.GSTRate),
		db.Numeric(inv.GoldValue), db.Numeric(inv.MakingCharges), db.Numeric(inv.TaxableAmount),
		db.Numeric(inv.GSTAmount), db.Numeric(inv.TotalAmount)).Scan(&id, &inv.CreatedAt)
	if err != nil {
		return Invoice{}, mapErr(err)
	}
	inv.ID = db.UUIDString(id)

	batch := &pgx.Batch{}
	for _, ln := range inv.Items {
		itemID, err := uuidValue(ln.ItemID)
		if err != nil {
			return Invoice{}, err
		}
		batch.Queue(`INSERT INTO invoice_items
  (invoice_id, item_id, weight, quantity, making_charge, gold_value, making_charges, price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`, id, itemID, db.Numeric(ln.Weight), ln.Quantity, db.Numeric(ln.MakingCharge),
			db.Numeric(ln.GoldValue), db.Numeric(ln.MakingCharges), db.Numeric(ln.Price), db.Numeric(ln.LineTotal))
	}
	if batch.Len() == 0 {
		return inv, nil
	}
	results := r.DB.SendBatch(ctx, batch)
	for i := range inv.Items {
		var lineID pgtype.UUID
		if err := results.QueryRow().Scan(&lineID); err != nil {
			_ = results.Close()
			return Invoice{}, fmt.Errorf("insert invoice line %d: %w", i, mapErr(err))
		}
		inv.Items[i].ID = db.UUIDString(lineID)
		inv.Items[i].InvoiceID = inv.ID
	}
	if err := results.Close(); err != nil {
		return Invoice{}, mapErr(err)
	}
	return inv, nil
}
