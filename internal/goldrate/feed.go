// Package goldrate quotes live gold rates per carat and keeps each owner's
// recently used rates.
package goldrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/obs"
	"github.com/noah-isme/backend-jewellery/internal/pricing"
	"github.com/noah-isme/backend-jewellery/internal/resilience"
)

// Rate sources reported to clients.
const (
	SourceExchangeRateAPI = "ExchangeRate-API"
	SourcePublicAPI       = "Public API"
	SourceMarketEstimate  = "Market Estimate"
	SourceApproximate     = "Approximate"
)

const (
	noteEstimate    = "Using market estimate based on current exchange rates."
	noteApproximate = "Approximate rates - APIs unavailable. Please verify manually."
)

// Rates is one snapshot of per-gram INR rates.
type Rates struct {
	Rates       map[string]decimal.Decimal `json:"rates"`
	BaseRate24K decimal.Decimal            `json:"base_rate_24k"`
	USDToINR    decimal.Decimal            `json:"usd_to_inr"`
	USDPerOunce decimal.Decimal            `json:"usd_per_ounce"`
	Currency    string                     `json:"currency"`
	Unit        string                     `json:"unit"`
	Source      string                     `json:"source"`
	Note        string                     `json:"note,omitempty"`
	FetchedAt   time.Time                  `json:"timestamp"`
}

// ForCarat returns the rate for carat, e.g. 22.
func (r Rates) ForCarat(carat int) (decimal.Decimal, bool) {
	v, ok := r.Rates[CaratLabel(carat)]
	return v, ok
}

// CaratLabel renders 22 as "22K".
func CaratLabel(carat int) string {
	return fmt.Sprintf("%dK", carat)
}

// SupportedCarat reports whether the feed quotes carat.
func SupportedCarat(carat int) bool {
	for _, c := range pricing.Carats {
		if c == carat {
			return true
		}
	}
	return false
}

// Feed pulls USD/INR and the USD price of a troy ounce from public endpoints.
type Feed struct {
	HTTP                resilience.HTTPClient
	FXURL               string
	XAUURL              string
	USDINRFallback      decimal.Decimal
	USDPerOunceFallback decimal.Decimal
	Fallback24K         decimal.Decimal
	Now                 func() time.Time
}

type fxResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
	Price decimal.NullDecimal        `json:"price"`
	Spot  decimal.NullDecimal        `json:"spot"`
}

// Fetch always returns a usable snapshot. Upstream failures degrade to the
// configured fallbacks, and an unavailable feed yields approximate rates.
func (f Feed) Fetch(ctx context.Context) Rates {
	logger := zerolog.Ctx(ctx)

	usdINR, err := f.usdToINR(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("usd/inr rate unavailable, using fallback")
		obs.ObserveGoldRate("fx", "fallback")
		if feedDown(ctx, err) {
			return f.approximate()
		}
		usdINR = f.USDINRFallback
	} else {
		obs.ObserveGoldRate("fx", "ok")
	}

	perOunce, source, err := f.usdPerOunce(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("gold spot unavailable, using market estimate")
		obs.ObserveGoldRate("xau", "fallback")
		perOunce, source = f.USDPerOunceFallback, SourceMarketEstimate
	} else {
		obs.ObserveGoldRate("xau", "ok")
	}

	base := pricing.PerGramFromOunce(perOunce, usdINR)
	if !base.IsPositive() {
		return f.approximate()
	}
	out := f.snapshot(base, source)
	out.USDToINR = usdINR
	out.USDPerOunce = perOunce
	if source == SourceMarketEstimate {
		out.Note = noteEstimate
	}
	return out
}

func (f Feed) usdToINR(ctx context.Context) (decimal.Decimal, error) {
	var body fxResponse
	if err := f.HTTP.GetJSON(ctx, f.FXURL, &body); err != nil {
		return decimal.Zero, err
	}
	inr, ok := body.Rates["INR"]
	if !ok || !inr.IsPositive() {
		return decimal.Zero, errors.New("goldrate: INR missing from fx response")
	}
	return inr, nil
}

func (f Feed) usdPerOunce(ctx context.Context) (decimal.Decimal, string, error) {
	var body fxResponse
	if err := f.HTTP.GetJSON(ctx, f.XAUURL, &body); err != nil {
		return decimal.Zero, "", err
	}
	// XAU-based quotes give ounces per USD.
	if usd, ok := body.Rates["USD"]; ok && usd.IsPositive() {
		return decimal.NewFromInt(1).Div(usd), SourceExchangeRateAPI, nil
	}
	if body.Price.Valid && body.Price.Decimal.IsPositive() {
		return body.Price.Decimal, SourcePublicAPI, nil
	}
	if body.Spot.Valid && body.Spot.Decimal.IsPositive() {
		return body.Spot.Decimal, SourcePublicAPI, nil
	}
	return decimal.Zero, "", errors.New("goldrate: no usable price in xau response")
}

func (f Feed) approximate() Rates {
	obs.ObserveGoldRate("feed", "approximate")
	out := f.snapshot(f.Fallback24K, SourceApproximate)
	out.Note = noteApproximate
	return out
}

func (f Feed) snapshot(base24K decimal.Decimal, source string) Rates {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	rates := make(map[string]decimal.Decimal, len(pricing.Carats))
	for _, c := range pricing.Carats {
		rates[CaratLabel(c)] = pricing.RateForCarat(base24K, c).Round(2)
	}
	return Rates{
		Rates:       rates,
		BaseRate24K: base24K.Round(2),
		Currency:    "INR",
		Unit:        "gram",
		Source:      source,
		FetchedAt:   now().UTC(),
	}
}

func feedDown(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, resilience.ErrOpenCircuit)
}
