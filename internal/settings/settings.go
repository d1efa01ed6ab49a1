// Package settings serves the per-owner store configuration: GST rate,
// timezone, stock alert threshold and the invoice letterhead.
package settings

import (
	"context"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
)

// Store persists settings of the current owner.
type Store interface {
	Get(ctx context.Context) (repo.Settings, error)
	Upsert(ctx context.Context, s repo.Settings) (repo.Settings, error)
}

// Invalidator drops cached reports after a settings change.
type Invalidator interface {
	Bump(ctx context.Context, owner string) error
}

// Input is the body of PUT /api/v1/settings.
type Input struct {
	StoreName           string           `json:"store_name" validate:"required,max=200"`
	GSTNumber           string           `json:"gst_number" validate:"max=15"`
	Address             string           `json:"address" validate:"max=500"`
	Phone               string           `json:"phone" validate:"max=20"`
	LogoURL             string           `json:"logo_url" validate:"omitempty,url"`
	GSTRate             *decimal.Decimal `json:"gst_rate" validate:"omitempty,gte=0,lte=100"`
	CurrencySymbol      string           `json:"currency_symbol" validate:"max=8"`
	DateFormat          string           `json:"date_format" validate:"max=20"`
	Timezone            string           `json:"timezone" validate:"max=64"`
	Theme               string           `json:"theme" validate:"omitempty,oneof=light dark"`
	StockAlertThreshold *int             `json:"stock_alert_threshold" validate:"omitempty,gte=0"`
}

func (in Input) settings() repo.Settings {
	s := repo.DefaultSettings()
	s.StoreName = strings.TrimSpace(in.StoreName)
	s.GSTNumber = strings.TrimSpace(in.GSTNumber)
	s.Address = strings.TrimSpace(in.Address)
	s.Phone = strings.TrimSpace(in.Phone)
	s.LogoURL = strings.TrimSpace(in.LogoURL)
	if in.GSTRate != nil {
		s.GSTRate = *in.GSTRate
	}
	if v := strings.TrimSpace(in.CurrencySymbol); v != "" {
		s.CurrencySymbol = v
	}
	if v := strings.TrimSpace(in.DateFormat); v != "" {
		s.DateFormat = v
	}
	if v := strings.TrimSpace(in.Timezone); v != "" {
		s.Timezone = v
	}
	if in.Theme != "" {
		s.Theme = in.Theme
	}
	if in.StockAlertThreshold != nil {
		s.StockAlertThreshold = *in.StockAlertThreshold
	}
	return s
}

// Service reads and saves store settings.
type Service struct {
	Store       Store
	Invalidator Invalidator
}

// Get returns the owner's settings, falling back to defaults.
func (s Service) Get(ctx context.Context) (repo.Settings, error) {
	out, err := s.Store.Get(ctx)
	return out, repo.AppError("settings", err)
}

// Location resolves the owner's timezone. Unknown zones fall back to fallback.
func (s Service) Location(ctx context.Context, fallback *time.Location) (*time.Location, repo.Settings, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, repo.Settings{}, err
	}
	loc, lerr := time.LoadLocation(st.Timezone)
	if lerr != nil {
		zerolog.Ctx(ctx).Warn().Err(lerr).Str("timezone", st.Timezone).Msg("stored timezone invalid")
		loc = fallback
	}
	if loc == nil {
		loc = time.UTC
	}
	return loc, st, nil
}

// Save validates and upserts the owner's settings.
func (s Service) Save(ctx context.Context, in Input) (repo.Settings, error) {
	st := in.settings()
	if _, err := time.LoadLocation(st.Timezone); err != nil {
		return repo.Settings{}, common.ErrValidation("request validation failed", map[string]string{"timezone": "timezone"})
	}
	out, err := s.Store.Upsert(ctx, st)
	if err != nil {
		return repo.Settings{}, repo.AppError("settings", err)
	}
	if owner, ok := common.UserID(ctx); ok && s.Invalidator != nil {
		if err := s.Invalidator.Bump(ctx, owner); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("report cache bump failed")
		}
	}
	return out, nil
}

// Handler exposes /api/v1/settings.
type Handler struct {
	Service  Service
	Validate *validator.Validate
}

// Get handles GET /api/v1/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st)
}

// Put handles PUT /api/v1/settings.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, in); err != nil {
		common.WriteError(w, err)
		return
	}
	st, err := h.Service.Save(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st)
}
