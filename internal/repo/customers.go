package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

// Customer is a customers row.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomersRepo reads and writes the customers of the current owner.
type CustomersRepo struct {
	DB db.DBTX
}

// WithTx returns a copy bound to tx.
func (r CustomersRepo) WithTx(tx pgx.Tx) CustomersRepo {
	return CustomersRepo{DB: tx}
}

const customerColumns = `id, name, phone, email, address, notes, tags, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		c  Customer
		id pgtype.UUID
	)
	if err := row.Scan(&id, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Customer{}, err
	}
	c.ID = db.UUIDString(id)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

func collectCustomers(rows pgx.Rows) ([]Customer, error) {
	defer rows.Close()
	out := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// List returns a page of customers whose name or phone matches search.
func (r CustomersRepo) List(ctx context.Context, search string, limit, offset int) ([]Customer, int, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	const where = ` FROM customers
WHERE owner_id = $1
  AND ($2::text = '' OR name ILIKE '%' || $2::text || '%' OR phone LIKE '%' || $2::text || '%')`
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*)`+where, oid, search).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+customerColumns+where+`
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4`, oid, search, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	out, err := collectCustomers(rows)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	return out, total, nil
}

// All returns every customer of the owner.
func (r CustomersRepo) All(ctx context.Context) ([]Customer, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE owner_id = $1 ORDER BY created_at, id`, oid)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := collectCustomers(rows)
	return out, mapErr(err)
}

// Get returns a single customer.
func (r CustomersRepo) Get(ctx context.Context, id string) (Customer, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Customer{}, err
	}
	cid, err := uuidValue(id)
	if err != nil {
		return Customer{}, err
	}
	c, err := scanCustomer(r.DB.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE owner_id = $1 AND id = $2`, oid, cid))
	return c, mapErr(err)
}

// Create inserts a customer.
func (r CustomersRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Customer{}, err
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	created, err := scanCustomer(r.DB.QueryRow(ctx, `INSERT INTO customers (owner_id, name, phone, email, address, notes, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+customerColumns, oid, c.Name, c.Phone, c.Email, c.Address, c.Notes, c.Tags))
	return created, mapErr(err)
}

// Update replaces the mutable fields of a customer.
func (r CustomersRepo) Update(ctx context.Context, c Customer) (Customer, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Customer{}, err
	}
	cid, err := uuidValue(c.ID)
	if err != nil {
		return Customer{}, err
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	updated, err := scanCustomer(r.DB.QueryRow(ctx, `UPDATE customers SET
  name = $3, phone = $4, email = $5, address = $6, notes = $7, tags = $8, updated_at = now()
WHERE owner_id = $1 AND id = $2
RETURNING `+customerColumns, oid, cid, c.Name, c.Phone, c.Email, c.Address, c.Notes, c.Tags))
	return updated, mapErr(err)
}

// Delete removes a customer. Their invoices keep a NULL customer.
func (r CustomersRepo) Delete(ctx context.Context, id string) error {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return err
	}
	cid, err := uuidValue(id)
	if err != nil {
		return err
	}
	tag, err := r.DB.Exec(ctx, `DELETE FROM customers WHERE owner_id = $1 AND id = $2`, oid, cid)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
