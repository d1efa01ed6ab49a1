package repo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/db"
)

// Default store settings applied until the owner saves their own.
const (
	DefaultStoreName      = "My Jewellery Store"
	DefaultCurrencySymbol = "₹"
	DefaultDateFormat     = "DD/MM/YYYY"
	DefaultTimezone       = "Asia/Kolkata"
	DefaultTheme          = "light"
	DefaultStockAlert     = 5
)

// DefaultGSTRate is the jewellery GST percentage.
var DefaultGSTRate = decimal.RequireFromString("3.0")

// Settings is a store_settings row.
type Settings struct {
	StoreName           string          `json:"store_name"`
	GSTNumber           string          `json:"gst_number"`
	Address             string          `json:"address"`
	Phone               string          `json:"phone"`
	LogoURL             string          `json:"logo_url"`
	GSTRate             decimal.Decimal `json:"gst_rate"`
	CurrencySymbol      string          `json:"currency_symbol"`
	DateFormat          string          `json:"date_format"`
	Timezone            string          `json:"timezone"`
	Theme               string          `json:"theme"`
	StockAlertThreshold int             `json:"stock_alert_threshold"`
	UpdatedAt           *time.Time      `json:"updated_at,omitempty"`
}

// DefaultSettings returns the settings of an owner who never saved any.
func DefaultSettings() Settings {
	return Settings{
		StoreName:           DefaultStoreName,
		GSTRate:             DefaultGSTRate,
		CurrencySymbol:      DefaultCurrencySymbol,
		DateFormat:          DefaultDateFormat,
		Timezone:            DefaultTimezone,
		Theme:               DefaultTheme,
		StockAlertThreshold: DefaultStockAlert,
	}
}

// SettingsRepo reads and writes the current owner's store settings.
type SettingsRepo struct {
	DB db.DBTX
}

const settingsColumns = `store_name, gst_number, address, phone, logo_url, gst_rate,
  currency_symbol, date_format, timezone, theme, stock_alert_threshold, updated_at`

// Get returns the saved settings, or the defaults when none exist.
func (r SettingsRepo) Get(ctx context.Context) (Settings, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Settings{}, err
	}
	var (
		s       Settings
		updated time.Time
	)
	err = r.DB.QueryRow(ctx, `SELECT `+settingsColumns+` FROM store_settings WHERE owner_id = $1`, oid).Scan(
		&s.StoreName, &s.GSTNumber, &s.Address, &s.Phone, &s.LogoURL, db.Dec(&s.GSTRate),
		&s.CurrencySymbol, &s.DateFormat, &s.Timezone, &s.Theme, &s.StockAlertThreshold, &updated)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, ErrNotFound) {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	s.UpdatedAt = &updated
	return s, nil
}

// Upsert saves s as the owner's settings.
func (r SettingsRepo) Upsert(ctx context.Context, s Settings) (Settings, error) {
	oid, err := ownerFromContext(ctx)
	if err != nil {
		return Settings{}, err
	}
	var updated time.Time
	err = r.DB.QueryRow(ctx, `INSERT INTO store_settings
  (owner_id, store_name, gst_number, address, phone, logo_url, gst_rate,
   currency_symbol, date_format, timezone, theme, stock_alert_threshold)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (owner_id) DO UPDATE SET
  store_name = EXCLUDED.store_name,
  gst_number = EXCLUDED.gst_number,
  address = EXCLUDED.address,
  phone = EXCLUDED.phone,
  logo_url = EXCLUDED.logo_url,
  gst_rate = EXCLUDED.gst_rate,
  currency_symbol = EXCLUDED.currency_symbol,
  date_format = EXCLUDED.date_format,
  timezone = EXCLUDED.timezone,
  theme = EXCLUDED.theme,
  stock_alert_threshold = EXCLUDED.stock_alert_threshold,
  updated_at = now()
RETURNING updated_at`,
		oid, s.StoreName, s.GSTNumber, s.Address, s.Phone, s.LogoURL, db.Numeric(s.GSTRate),
		s.CurrencySymbol, s.DateFormat, s.Timezone, s.Theme, s.StockAlertThreshold).Scan(&updated)
	if err != nil {
		return Settings{}, mapErr(err)
	}
	s.UpdatedAt = &updated
	return s, nil
}
