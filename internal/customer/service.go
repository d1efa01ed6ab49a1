// Package customer manages the store's customers and their purchase history.
package customer

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

// Store persists customers of the current owner.
type Store interface {
	List(ctx context.Context, search string, limit, offset int) ([]repo.Customer, int, error)
	Get(ctx context.Context, id string) (repo.Customer, error)
	Create(ctx context.Context, c repo.Customer) (repo.Customer, error)
	Update(ctx context.Context, c repo.Customer) (repo.Customer, error)
	Delete(ctx context.Context, id string) error
}

// InvoiceReader loads invoices and their lines.
type InvoiceReader interface {
	List(ctx context.Context, f repo.InvoiceFilter) ([]repo.Invoice, error)
	Lines(ctx context.Context, f repo.InvoiceFilter) ([]repo.SaleLine, error)
}

// Invalidator drops cached reports after a customer change.
type Invalidator interface {
	Bump(ctx context.Context, owner string) error
}

// Input is the writable part of a customer.
type Input struct {
	Name    string   `json:"name" validate:"required,max=200"`
	Phone   string   `json:"phone" validate:"required,min=10,max=15,numeric"`
	Email   string   `json:"email" validate:"omitempty,email"`
	Address string   `json:"address" validate:"max=500"`
	Notes   string   `json:"notes" validate:"max=2000"`
	Tags    []string `json:"tags" validate:"max=20,dive,required,max=32"`
}

func (in Input) customer(id string) repo.Customer {
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return repo.Customer{
		ID:      id,
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Email:   strings.TrimSpace(in.Email),
		Address: strings.TrimSpace(in.Address),
		Notes:   in.Notes,
		Tags:    tags,
	}
}

// History is a customer with every invoice they were billed on.
type History struct {
	Customer       repo.Customer   `json:"customer"`
	Invoices       []repo.Invoice  `json:"invoices"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	PurchaseCount  int             `json:"purchase_count"`
}

// Service applies customer rules on top of the store.
type Service struct {
	Store       Store
	Invoices    InvoiceReader
	Invalidator Invalidator
}

// List returns a page of customers and the total match count.
func (s Service) List(ctx context.Context, search string, limit, offset int) ([]repo.Customer, int, error) {
	out, total, err := s.Store.List(ctx, search, limit, offset)
	if err != nil {
		return nil, 0, repo.AppError("customer", err)
	}
	return out, total, nil
}

// Get returns one customer.
func (s Service) Get(ctx context.Context, id string) (repo.Customer, error) {
	c, err := s.Store.Get(ctx, id)
	return c, repo.AppError("customer", err)
}

// Create adds a customer.
func (s Service) Create(ctx context.Context, in Input) (repo.Customer, error) {
	c, err := s.Store.Create(ctx, in.customer(""))
	if err != nil {
		return repo.Customer{}, repo.AppError("customer", err)
	}
	s.invalidate(ctx)
	return c, nil
}

// Update replaces a customer's fields.
func (s Service) Update(ctx context.Context, id string, in Input) (repo.Customer, error) {
	c, err := s.Store.Update(ctx, in.customer(id))
	if err != nil {
		return repo.Customer{}, repo.AppError("customer", err)
	}
	s.invalidate(ctx)
	return c, nil
}

// Delete removes a customer. Their invoices remain without a customer.
func (s Service) Delete(ctx context.Context, id string) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return repo.AppError("customer", err)
	}
	s.invalidate(ctx)
	return nil
}

// History returns the customer's invoices, newest first, with their lines.
// Lines whose item has been deleted are labelled Unknown.
func (s Service) History(ctx context.Context, id string) (History, error) {
	c, err := s.Store.Get(ctx, id)
	if err != nil {
		return History{}, repo.AppError("customer", err)
	}
	f := repo.InvoiceFilter{CustomerID: c.ID}
	invoices, err := s.Invoices.List(ctx, f)
	if err != nil {
		return History{}, repo.AppError("invoice", err)
	}
	lines, err := s.Invoices.Lines(ctx, f)
	if err != nil {
		return History{}, repo.AppError("invoice", err)
	}
	invoices = repo.AttachLines(invoices, lines)
	total := decimal.Zero
	for i := range invoices {
		total = total.Add(invoices[i].TotalAmount)
		for j := range invoices[i].Items {
			labelDeleted(&invoices[i].Items[j])
		}
	}
	return History{Customer: c, Invoices: invoices, TotalPurchases: total, PurchaseCount: len(invoices)}, nil
}

func labelDeleted(ln *repo.InvoiceLine) {
	if ln.ItemName == nil {
		unknown := "Unknown"
		ln.ItemName = &unknown
	}
	if ln.SKU == nil {
		na := "N/A"
		ln.SKU = &na
	}
}

func (s Service) invalidate(ctx context.Context) {
	owner, ok := common.UserID(ctx)
	if !ok || s.Invalidator == nil {
		return
	}
	if err := s.Invalidator.Bump(ctx, owner); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("report cache bump failed")
	}
}
