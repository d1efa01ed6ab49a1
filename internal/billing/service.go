// Package billing turns a point-of-sale cart into a priced, persisted invoice.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/db"
	"github.com/noah-isme/backend-jewellery/internal/lock"
	"github.com/noah-isme/backend-jewellery/internal/obs"
	"github.com/noah-isme/backend-jewellery/internal/pricing"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

// Store access used inside the invoice transaction.
type (
	ItemStore interface {
		ForSale(ctx context.Context, ids []string) (map[string]repo.Item, error)
		DecrementStock(ctx context.Context, id string, qty int) error
	}
	InvoiceStore interface {
		NextSequence(ctx context.Context) (int, error)
		Create(ctx context.Context, inv repo.Invoice) (repo.Invoice, error)
	}
	CustomerStore interface {
		Get(ctx context.Context, id string) (repo.Customer, error)
	}
)

// Tx groups the stores bound to one database transaction.
type Tx struct {
	Items     ItemStore
	Invoices  InvoiceStore
	Customers CustomerStore
}

// TxRunner runs fn inside a transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// ItemReader loads items outside a transaction, for quotes.
type ItemReader interface {
	Get(ctx context.Context, id string) (repo.Item, error)
}

// InvoiceReader lists stored invoices.
type InvoiceReader interface {
	List(ctx context.Context, f repo.InvoiceFilter) ([]repo.Invoice, error)
	Get(ctx context.Context, id string) (repo.Invoice, error)
}

// SettingsReader supplies the owner's GST rate.
type SettingsReader interface {
	Get(ctx context.Context) (repo.Settings, error)
}

// Locker serialises invoice numbering per owner.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// RateRecorder remembers the gold rate used for a sale.
type RateRecorder interface {
	Record(ctx context.Context, owner string, rate decimal.Decimal) error
}

// Invalidator drops cached reports after a sale.
type Invalidator interface {
	Bump(ctx context.Context, owner string) error
}

// PgxTx runs billing transactions on a pgx pool.
type PgxTx struct {
	Pool      db.TxBeginner
	Items     repo.ItemsRepo
	Invoices  repo.InvoicesRepo
	Customers repo.CustomersRepo
}

// InTx implements TxRunner.
func (p PgxTx) InTx(ctx context.Context, fn func(Tx) error) error {
	return db.InTx(ctx, p.Pool, func(tx pgx.Tx) error {
		return fn(Tx{
			Items:     p.Items.WithTx(tx),
			Invoices:  p.Invoices.WithTx(tx),
			Customers: p.Customers.WithTx(tx),
		})
	})
}

// LineInput is one cart line. Weight defaults to the item's net weight.
type LineInput struct {
	ItemID   string           `json:"item_id" validate:"required,uuid"`
	Weight   *decimal.Decimal `json:"weight" validate:"omitempty,gte=0"`
	Quantity int              `json:"quantity" validate:"gte=1,lte=1000"`
}

// Input is the body of POST /api/v1/invoices and POST /api/v1/invoices/quote.
type Input struct {
	CustomerID *string         `json:"customer_id" validate:"omitempty,uuid"`
	GoldRate   decimal.Decimal `json:"gold_rate" validate:"gt=0"`
	Items      []LineInput     `json:"items" validate:"required,min=1,max=100,dive"`
}

// Service prices carts and records invoices.
type Service struct {
	Tx          TxRunner
	Items       ItemReader
	Invoices    InvoiceReader
	Settings    SettingsReader
	Locker      Locker
	LockTTL     time.Duration
	Rates       RateRecorder
	Invalidator Invalidator
}

// Quote prices the cart without reserving stock or writing anything.
func (s Service) Quote(ctx context.Context, in Input) (pricing.Quote, error) {
	if err := checkInput(in); err != nil {
		return pricing.Quote{}, err
	}
	gst, err := s.gstRate(ctx)
	if err != nil {
		return pricing.Quote{}, err
	}
	items := make(map[string]repo.Item, len(in.Items))
	for _, ln := range in.Items {
		if _, ok := items[ln.ItemID]; ok {
			continue
		}
		it, err := s.Items.Get(ctx, ln.ItemID)
		if err != nil {
			return pricing.Quote{}, repo.AppError("item", err)
		}
		items[ln.ItemID] = it
	}
	lines, err := cartLines(in.Items, items)
	if err != nil {
		return pricing.Quote{}, err
	}
	return price(lines, in.GoldRate, gst)
}

// Create prices the cart, stores the invoice with its lines and takes the sold
// quantities out of stock, all or nothing.
func (s Service) Create(ctx context.Context, in Input) (repo.Invoice, error) {
	owner, err := common.RequireUserID(ctx)
	if err != nil {
		return repo.Invoice{}, err
	}
	if err := checkInput(in); err != nil {
		return repo.Invoice{}, err
	}
	gst, err := s.gstRate(ctx)
	if err != nil {
		return repo.Invoice{}, err
	}

	var out repo.Invoice
	err = s.Locker.WithLock(ctx, lock.InvoiceKey(owner), s.LockTTL, func(ctx context.Context) error {
		return s.Tx.InTx(ctx, func(tx Tx) error {
			inv, err := s.create(ctx, tx, in, gst)
			if err != nil {
				return err
			}
			out = inv
			return nil
		})
	})
	if err != nil {
		obs.ObserveInvoice("error", 0)
		if errors.Is(err, lock.ErrBusy) {
			return repo.Invoice{}, common.ErrConflict("invoice numbering busy, retry", err)
		}
		return repo.Invoice{}, repo.AppError("invoice", err)
	}
	obs.ObserveInvoice("ok", out.TotalAmount.InexactFloat64())

	logger := zerolog.Ctx(ctx)
	if s.Rates != nil {
		if err := s.Rates.Record(ctx, owner, in.GoldRate); err != nil {
			logger.Warn().Err(err).Msg("gold rate history update failed")
		}
	}
	if s.Invalidator != nil {
		if err := s.Invalidator.Bump(ctx, owner); err != nil {
			logger.Warn().Err(err).Msg("report cache bump failed")
		}
	}
	logger.Info().Str("invoice_id", out.ID).Str("invoice_number", out.InvoiceNumber).
		Str("total_amount", out.TotalAmount.StringFixed(2)).Msg("invoice created")
	return out, nil
}

func (s Service) create(ctx context.Context, tx Tx, in Input, gst decimal.Decimal) (repo.Invoice, error) {
	if in.CustomerID != nil {
		if _, err := tx.Customers.Get(ctx, *in.CustomerID); err != nil {
			if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrInvalidID) {
				return repo.Invoice{}, common.ErrValidation("customer not found", map[string]string{"customer_id": "exists"})
			}
			return repo.Invoice{}, err
		}
	}

	ids := make([]string, 0, len(in.Items))
	wanted := make(map[string]int, len(in.Items))
	for _, ln := range in.Items {
		if _, ok := wanted[ln.ItemID]; !ok {
			ids = append(ids, ln.ItemID)
		}
		wanted[ln.ItemID] += ln.Quantity
	}
	items, err := tx.Items.ForSale(ctx, ids)
	if err != nil {
		return repo.Invoice{}, err
	}
	for _, id := range ids {
		it, ok := items[id]
		if !ok {
			return repo.Invoice{}, common.ErrValidation("item not found", map[string]string{"items": id})
		}
		if it.Quantity < wanted[id] {
			return repo.Invoice{}, common.NewAppError(common.CodeInsufficientStock,
				fmt.Sprintf("only %d of %s in stock", it.Quantity, it.Name), http.StatusConflict, repo.ErrInsufficientStock)
		}
	}

	lines, err := cartLines(in.Items, items)
	if err != nil {
		return repo.Invoice{}, err
	}
	q, err := price(lines, in.GoldRate, gst)
	if err != nil {
		return repo.Invoice{}, err
	}
	seq, err := tx.Invoices.NextSequence(ctx)
	if err != nil {
		return repo.Invoice{}, err
	}

	inv := repo.Invoice{
		InvoiceNumber: pricing.InvoiceNumber(seq),
		CustomerID:    in.CustomerID,
		GoldRate:      q.GoldRate,
		GSTRate:       q.GSTRate,
		GoldValue:     q.GoldValue,
		MakingCharges: q.MakingCharges,
		TaxableAmount: q.Taxable,
		GSTAmount:     q.GSTAmount,
		TotalAmount:   q.Total,
		Items:         make([]repo.InvoiceLine, 0, len(q.Lines)),
	}
	for i, lq := range q.Lines {
		it := items[lq.ItemID]
		inv.Items = append(inv.Items, repo.InvoiceLine{
			ItemID:        lq.ItemID,
			ItemName:      &it.Name,
			SKU:           &it.SKU,
			MetalType:     &it.MetalType,
			Weight:        lq.Weight,
			Quantity:      lq.Quantity,
			MakingCharge:  lines[i].MakingChargePerGram,
			GoldValue:     lq.GoldValue,
			MakingCharges: lq.MakingCharges,
			Price:         lq.Subtotal,
			LineTotal:     lq.LineTotal,
		})
	}
	created, err := tx.Invoices.Create(ctx, inv)
	if err != nil {
		return repo.Invoice{}, err
	}
	for _, ln := range in.Items {
		if err := tx.Items.DecrementStock(ctx, ln.ItemID, ln.Quantity); err != nil {
			return repo.Invoice{}, err
		}
	}
	return created, nil
}

// List returns recent invoices, newest first.
func (s Service) List(ctx context.Context, f repo.InvoiceFilter) ([]repo.Invoice, error) {
	out, err := s.Invoices.List(ctx, f)
	if err != nil {
		return nil, repo.AppError("invoice", err)
	}
	return out, nil
}

// Get returns one invoice with its lines.
func (s Service) Get(ctx context.Context, id string) (repo.Invoice, error) {
	inv, err := s.Invoices.Get(ctx, id)
	return inv, repo.AppError("invoice", err)
}

func (s Service) gstRate(ctx context.Context) (decimal.Decimal, error) {
	if s.Settings == nil {
		return repo.DefaultGSTRate, nil
	}
	st, err := s.Settings.Get(ctx)
	if err != nil {
		return decimal.Zero, repo.AppError("settings", err)
	}
	return st.GSTRate, nil
}

func checkInput(in Input) error {
	if !in.GoldRate.IsPositive() {
		return common.ErrValidation("gold rate must be positive", map[string]string{"gold_rate": "gt=0"})
	}
	if len(in.Items) == 0 {
		return common.ErrValidation("cart is empty", map[string]string{"items": "min=1"})
	}
	return nil
}

func cartLines(in []LineInput, items map[string]repo.Item) ([]pricing.Line, error) {
	lines := make([]pricing.Line, 0, len(in))
	for _, ln := range in {
		it, ok := items[ln.ItemID]
		if !ok {
			return nil, common.ErrValidation("item not found", map[string]string{"items": ln.ItemID})
		}
		weight := it.NetWeight
		if ln.Weight != nil {
			weight = *ln.Weight
		}
		lines = append(lines, pricing.Line{
			ItemID:              ln.ItemID,
			Weight:              weight,
			Quantity:            ln.Quantity,
			MakingChargePerGram: it.MakingCharge,
		})
	}
	return lines, nil
}

func price(lines []pricing.Line, goldRate, gst decimal.Decimal) (pricing.Quote, error) {
	q, err := pricing.Compute(lines, goldRate, gst)
	if errors.Is(err, pricing.ErrInvalidInput) {
		return pricing.Quote{}, common.ErrInvalidInput(err)
	}
	return q, err
}
