// Package inventory manages the jewellery items a store keeps in stock.
package inventory

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

// Store persists items of the current owner.
type Store interface {
	List(ctx context.Context, f repo.ItemFilter) ([]repo.Item, int, error)
	Get(ctx context.Context, id string) (repo.Item, error)
	Create(ctx context.Context, it repo.Item) (repo.Item, error)
	Update(ctx context.Context, it repo.Item) (repo.Item, error)
	Delete(ctx context.Context, id string) error
}

// Invalidator drops cached reports after a stock change.
type Invalidator interface {
	Bump(ctx context.Context, owner string) error
}

// Input is the writable part of an item.
type Input struct {
	Name         string          `json:"name" validate:"required,max=200"`
	SKU          string          `json:"sku" validate:"required,max=64"`
	MetalType    string          `json:"metal_type" validate:"required,oneof=Gold Silver Diamond"`
	Purity       string          `json:"purity" validate:"max=32"`
	GrossWeight  decimal.Decimal `json:"gross_weight" validate:"gte=0"`
	NetWeight    decimal.Decimal `json:"net_weight" validate:"gte=0"`
	MakingCharge decimal.Decimal `json:"making_charge" validate:"gte=0"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
}

func (in Input) item(id string) repo.Item {
	return repo.Item{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		SKU:          strings.TrimSpace(in.SKU),
		MetalType:    in.MetalType,
		Purity:       strings.TrimSpace(in.Purity),
		GrossWeight:  in.GrossWeight,
		NetWeight:    in.NetWeight,
		MakingCharge: in.MakingCharge,
		Quantity:     in.Quantity,
	}
}

// Service applies inventory rules on top of the store.
type Service struct {
	Store       Store
	Invalidator Invalidator
}

// List returns a page of items and the total number of matches.
func (s Service) List(ctx context.Context, f repo.ItemFilter) ([]repo.Item, int, error) {
	items, total, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, 0, repo.AppError("item", err)
	}
	return items, total, nil
}

// Get returns one item.
func (s Service) Get(ctx context.Context, id string) (repo.Item, error) {
	it, err := s.Store.Get(ctx, id)
	return it, repo.AppError("item", err)
}

// Create adds an item. SKUs are unique per owner.
func (s Service) Create(ctx context.Context, in Input) (repo.Item, error) {
	it, err := s.Store.Create(ctx, in.item(""))
	if err != nil {
		return repo.Item{}, repo.AppError("item", err)
	}
	s.invalidate(ctx)
	return it, nil
}

// Update replaces an item's fields.
func (s Service) Update(ctx context.Context, id string, in Input) (repo.Item, error) {
	it, err := s.Store.Update(ctx, in.item(id))
	if err != nil {
		return repo.Item{}, repo.AppError("item", err)
	}
	s.invalidate(ctx)
	return it, nil
}

// Delete removes an item. Invoices that sold it keep their lines.
func (s Service) Delete(ctx context.Context, id string) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return repo.AppError("item", err)
	}
	s.invalidate(ctx)
	return nil
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
