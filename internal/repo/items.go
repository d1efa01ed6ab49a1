package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

// ErrInsufficientStock is returned when a decrement would make quantity negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// Item is a jewellery_items row.
type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	MetalType    string          `json:"metal_type"`
	Purity       string          `json:"purity"`
	GrossWeight  decimal.Decimal `json:"gross_weight"`
	NetWeight    decimal.Decimal `json:"net_weight"`
	MakingCharge decimal.Decimal `json:"making_charge"`
	Quantity     int             `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Search    string
	MetalType string
	Limit     int
	Offset    int
}

// ItemsRepo reads and writes inventory rows of the current owner.
type ItemsRepo struct {
	DB db.DBTX
}

// WithTx returns a copy bound to tx.
func (r ItemsRepo) WithTx(tx pgx.Tx) ItemsRepo {
	return ItemsRepo{DB: tx}
}

const itemColumns = `id, name, sku, metal_type, purity, gross_weight, net_weight, making_charge, quantity, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it Item
		id pgtype.UUID
	)
	err := row.Scan(&id, &it.Name, &it.SKU, &it.MetalType, &it.Purity,
		db.Dec(&it.GrossWeight), db.Dec(&it.NetWeight), db.Dec(&it.MakingCharge),
		&it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	it.ID = db.UUIDString(id)
	return it, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	items := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns a page of items matching f together with the total match count.
func (r ItemsRepo) List(ctx context.Context, f ItemFilter) ([]Item, int, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	const where = ` FROM jewellery_items
WHERE owner_id = $1
  AND ($2::text = '' OR name ILIKE '%' || $2::text || '%' OR sku ILIKE '%' || $2::text || '%')
  AND ($3::text = '' OR metal_type = $3::text)`
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*)`+where, oid, f.Search, f.MetalType).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+itemColumns+where+`
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`, oid, f.Search, f.MetalType, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	return items, total, nil
}

// All returns every item of the owner.
func (r ItemsRepo) All(ctx context.Context) ([]Item, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT `+itemColumns+` FROM jewellery_items WHERE owner_id = $1 ORDER BY name, id`, oid)
	if err != nil {
		return nil, mapErr(err)
	}
	items, err := collectItems(rows)
	return items, mapErr(err)
}

// Get returns a single item.
func (r ItemsRepo) Get(ctx context.Context, id string) (Item, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Item{}, err
	}
	iid, err := uuidValue(id)
	if err != nil {
		return Item{}, err
	}
	it, err := scanItem(r.DB.QueryRow(ctx, `SELECT `+itemColumns+` FROM jewellery_items WHERE owner_id = $1 AND id = $2`, oid, iid))
	return it, mapErr(err)
}

// ForSale locks the requested items for the remainder of the transaction.
func (r ItemsRepo) ForSale(ctx context.Context, ids []string) (map[string]Item, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	params := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		v, err := uuidValue(id)
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+itemColumns+` FROM jewellery_items
WHERE owner_id = $1 AND id = ANY($2)
ORDER BY id
FOR UPDATE`, oid, params)
	if err != nil {
		return nil, mapErr(err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make(map[string]Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// Create inserts a new item and returns the stored row.
func (r ItemsRepo) Create(ctx context.Context, it Item) (Item, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Item{}, err
	}
	row := r.DB.QueryRow(ctx, `INSERT INTO jewellery_items
  (owner_id, name, sku, metal_type, purity, gross_weight, net_weight, making_charge, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+itemColumns,
		oid, it.Name, it.SKU, it.MetalType, it.Purity,
		db.Numeric(it.GrossWeight), db.Numeric(it.NetWeight), db.Numeric(it.MakingCharge), it.Quantity)
	created, err := scanItem(row)
	return created, mapErr(err)
}

// Update replaces the mutable fields of an item.
func (r ItemsRepo) Update(ctx context.Context, it Item) (Item, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Item{}, err
	}
	iid, err := uuidValue(it.ID)
	if err != nil {
		return Item{}, err
	}
	row := r.DB.QueryRow(ctx, `UPDATE jewellery_items SET
  name = $3, sku = $4, metal_type = $5, purity = $6, gross_weight = $7,
  net_weight = $8, making_charge = $9, quantity = $10, updated_at = now()
WHERE owner_id = $1 AND id = $2
RETURNING `+itemColumns,
		oid, iid, it.Name, it.SKU, it.MetalType, it.Purity,
		db.Numeric(it.GrossWeight), db.Numeric(it.NetWeight), db.Numeric(it.MakingCharge), it.Quantity)
	updated, err := scanItem(row)
	return updated, mapErr(err)
}

// Delete removes an item. Sold lines keep referencing its id.
func (r ItemsRepo) Delete(ctx context.Context, id string) error {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return err
	}
	iid, err := uuidValue(id)
	if err != nil {
		return err
	}
	tag, err := r.DB.Exec(ctx, `DELETE FROM jewellery_items WHERE owner_id = $1 AND id = $2`, oid, iid)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock subtracts qty from an item, refusing to go below zero.
func (r ItemsRepo) DecrementStock(ctx context.Context, id string, qty int) error {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return err
	}
	iid, err := uuidValue(id)
	if err != nil {
		return err
	}
	tag, err := r.DB.Exec(ctx, `UPDATE jewellery_items
SET quantity = quantity - $3, updated_at = now()
WHERE owner_id = $1 AND id = $2 AND quantity >= $3`, oid, iid, qty)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}
