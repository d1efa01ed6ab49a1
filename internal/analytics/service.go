// Package analytics loads an owner's rows, runs the report aggregations over
// them and caches the results per owner and report version.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-jewellery/internal/cache"
	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/obs"
	"github.com/noah-isme/backend-jewellery/internal/repo"
	"github.com/noah-isme/backend-jewellery/internal/reports"
)

// Report names used for cache keys and metrics.
const (
	ReportDaily        = "daily"
	ReportGST          = "gst"
	ReportProfitMargin = "profit_margin"
	ReportStock        = "stock"
	ReportTopSelling   = "top_selling"
	ReportSold         = "sold"
	ReportCustomers    = "customers"
	ReportInventory    = "inventory"
	ReportPerformance  = "performance"
)

// DefaultPerformanceDays is the performance window when no dates are given.
const DefaultPerformanceDays = 30

// clockReports read the current time, so their cache entries are keyed by
// the store-local day as well.
var clockReports = map[string]bool{
	ReportCustomers:   true,
	ReportInventory:   true,
	ReportPerformance: true,
}

// InvoiceSource reads the owner's invoices and sold lines.
type InvoiceSource interface {
	List(ctx context.Context, f repo.InvoiceFilter) ([]repo.Invoice, error)
	Lines(ctx context.Context, f repo.InvoiceFilter) ([]repo.SaleLine, error)
}

// CustomerSource reads every customer of the owner.
type CustomerSource interface {
	All(ctx context.Context) ([]repo.Customer, error)
}

// ItemSource reads every inventory item of the owner.
type ItemSource interface {
	All(ctx context.Context) ([]repo.Item, error)
}

// SettingsSource resolves the owner's timezone and settings.
type SettingsSource interface {
	Location(ctx context.Context, fallback *time.Location) (*time.Location, repo.Settings, error)
}

// GoldRater supplies the live rate used when a caller omits one.
type GoldRater interface {
	DefaultRate(ctx context.Context) decimal.Decimal
}

// Query carries the optional report parameters. Dates are YYYY-MM-DD in the
// store's timezone and both ends are inclusive.
type Query struct {
	Start      string
	End        string
	Limit      int
	Days       int
	CustomerID string
	MetalType  string
	GoldRate   decimal.Decimal
}

func (q Query) params() []string {
	return []string{q.Start, q.End, strconv.Itoa(q.Limit), strconv.Itoa(q.Days), q.CustomerID, q.MetalType, q.GoldRate.String()}
}

// Service builds reports for the owner on the request context.
type Service struct {
	Invoices  InvoiceSource
	Customers CustomerSource
	Items     ItemSource
	Settings  SettingsSource
	Rates     GoldRater
	Cache     *cache.Cache
	Location  *time.Location
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Daily returns per-day sales, newest day first.
func (s *Service) Daily(ctx context.Context, q Query) ([]reports.DailySales, error) {
	return cached(ctx, s, ReportDaily, q, func(ctx context.Context, loc *time.Location, _ repo.Settings) ([]reports.DailySales, error) {
		invoices, err := s.invoices(ctx, q, loc)
		if err != nil {
			return nil, err
		}
		return reports.DailySalesReport(invoices, loc), nil
	})
}

// GST returns monthly GST buckets, oldest month first, with a summary.
func (s *Service) GST(ctx context.Context, q Query) (reports.GSTReport, error) {
	return cached(ctx, s, ReportGST, q, func(ctx context.Context, loc *time.Location, _ repo.Settings) (reports.GSTReport, error) {
		invoices, err := s.invoices(ctx, q, loc)
		if err != nil {
			return reports.GSTReport{}, err
		}
		return reports.GSTMonthlyReport(invoices, loc), nil
	})
}

// ProfitMargin estimates profit per metal type.
func (s *Service) ProfitMargin(ctx context.Context, q Query) (reports.ProfitReport, error) {
	return cached(ctx, s, ReportProfitMargin, q, func(ctx context.Context, loc *time.Location, _ repo.Settings) (reports.ProfitReport, error) {
		f, err := invoiceFilter(q, loc)
		if err != nil {
			return reports.ProfitReport{}, err
		}
		var (
			invoices []repo.Invoice
			lines    []repo.SaleLine
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			invoices, err = s.Invoices.List(gctx, f)
			return err
		})
		g.Go(func() error {
			var err error
			lines, err = s.Invoices.Lines(gctx, f)
			return err
		})
		if err := g.Wait(); err != nil {
			return reports.ProfitReport{}, err
		}
		return reports.ProfitMargin(toInvoices(invoices), toSales(lines)), nil
	})
}

// Stock counts inventory by metal type, flagging items below the store's
// stock alert threshold.
func (s *Service) Stock(ctx context.Context) (reports.StockSummaryReport, error) {
	return cached(ctx, s, ReportStock, Query{}, func(ctx context.Context, _ *time.Location, st repo.Settings) (reports.StockSummaryReport, error) {
		items, err := s.Items.All(ctx)
		if err != nil {
			return reports.StockSummaryReport{}, err
		}
		return reports.StockSummary(toItems(items), st.StockAlertThreshold), nil
	})
}

// TopSelling ranks items by quantity sold, keeping at most q.Limit.
func (s *Service) TopSelling(ctx context.Context, q Query) ([]reports.ItemSales, error) {
	if q.Limit <= 0 {
		q.Limit = reports.DefaultTopSellingLimit
	}
	return cached(ctx, s, ReportTopSelling, q, func(ctx context.Context, loc *time.Location, _ repo.Settings) ([]reports.ItemSales, error) {
		sales, err := s.sales(ctx, q, loc)
		if err != nil {
			return nil, err
		}
		return reports.TopSelling(sales, q.Limit), nil
	})
}

// Sold lists every sold item, most recently sold first.
func (s *Service) Sold(ctx context.Context, q Query) ([]reports.ItemSales, error) {
	return cached(ctx, s, ReportSold, q, func(ctx context.Context, loc *time.Location, _ repo.Settings) ([]reports.ItemSales, error) {
		sales, err := s.sales(ctx, q, loc)
		if err != nil {
			return nil, err
		}
		return reports.SoldItems(sales, reports.SoldFilter{CustomerID: q.CustomerID, MetalType: q.MetalType}), nil
	})
}

// Segments segments every customer by purchase history.
func (s *Service) Segments(ctx context.Context) ([]reports.CustomerSegment, error) {
	return cached(ctx, s, ReportCustomers, Query{}, func(ctx context.Context, _ *time.Location, _ repo.Settings) ([]reports.CustomerSegment, error) {
		var (
			customers []repo.Customer
			invoices  []repo.Invoice
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			customers, err = s.Customers.All(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			invoices, err = s.Invoices.List(gctx, repo.InvoiceFilter{})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return reports.SegmentCustomers(toCustomers(customers), toInvoices(invoices), s.now()), nil
	})
}

// Inventory values stock and classifies item movement over q.Days, 90 by
// default. Stock is valued at q.GoldRate or the live rate when omitted.
func (s *Service) Inventory(ctx context.Context, q Query) (reports.InventoryReport, error) {
	if q.Days <= 0 {
		q.Days = reports.DefaultMovementDays
	}
	if !q.GoldRate.IsPositive() && s.Rates != nil {
		q.GoldRate = s.Rates.DefaultRate(ctx)
	}
	return cached(ctx, s, ReportInventory, q, func(ctx context.Context, _ *time.Location, _ repo.Settings) (reports.InventoryReport, error) {
		now := s.now()
		from := now.AddDate(0, 0, -q.Days)
		var (
			items []repo.Item
			lines []repo.SaleLine
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			items, err = s.Items.All(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			lines, err = s.Invoices.Lines(gctx, repo.InvoiceFilter{From: &from})
			return err
		})
		if err := g.Wait(); err != nil {
			return reports.InventoryReport{}, err
		}
		return reports.InventoryAnalytics(toItems(items), toSales(lines), q.GoldRate, q.Days, now), nil
	})
}

// Performance summarises transactions and customer acquisition between
// q.Start and q.End, defaulting to the last 30 days.
func (s *Service) Performance(ctx context.Context, q Query) (reports.PerformanceMetrics, error) {
	return cached(ctx, s, ReportPerformance, q, func(ctx context.Context, loc *time.Location, _ repo.Settings) (reports.PerformanceMetrics, error) {
		period := reports.TrailingDays(s.now(), DefaultPerformanceDays, loc)
		if q.Start != "" {
			period.Start = q.Start
		}
		if q.End != "" {
			period.End = q.End
		}
		f, err := invoiceFilter(Query{Start: period.Start, End: period.End}, loc)
		if err != nil {
			return reports.PerformanceMetrics{}, err
		}
		var (
			invoices  []repo.Invoice
			customers []repo.Customer
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			invoices, err = s.Invoices.List(gctx, f)
			return err
		})
		g.Go(func() error {
			var err error
			customers, err = s.Customers.All(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return reports.PerformanceMetrics{}, err
		}
		return reports.Performance(toInvoices(invoices), toCustomers(customers), period, loc), nil
	})
}

func (s *Service) invoices(ctx context.Context, q Query, loc *time.Location) ([]reports.Invoice, error) {
	f, err := invoiceFilter(q, loc)
	if err != nil {
		return nil, err
	}
	rows, err := s.Invoices.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return toInvoices(rows), nil
}

func (s *Service) sales(ctx context.Context, q Query, loc *time.Location) ([]reports.LineSale, error) {
	f, err := invoiceFilter(q, loc)
	if err != nil {
		return nil, err
	}
	rows, err := s.Invoices.Lines(ctx, f)
	if err != nil {
		return nil, err
	}
	return toSales(rows), nil
}

// invoiceFilter turns inclusive local dates into a half-open instant range.
func invoiceFilter(q Query, loc *time.Location) (repo.InvoiceFilter, error) {
	var f repo.InvoiceFilter
	if q.Start != "" {
		from, err := time.ParseInLocation(time.DateOnly, q.Start, loc)
		if err != nil {
			return f, common.ErrValidation("invalid start_date", map[string]string{"start_date": "datetime=2006-01-02"})
		}
		f.From = &from
	}
	if q.End != "" {
		end, err := time.ParseInLocation(time.DateOnly, q.End, loc)
		if err != nil {
			return f, common.ErrValidation("invalid end_date", map[string]string{"end_date": "datetime=2006-01-02"})
		}
		to := end.AddDate(0, 0, 1)
		f.To = &to
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, common.ErrValidation("start_date must not be after end_date", map[string]string{"start_date": "ltefield=end_date"})
	}
	return f, nil
}

type buildFunc[T any] func(ctx context.Context, loc *time.Location, st repo.Settings) (T, error)

// cached serves report from the owner's cache generation or builds and stores it.
func cached[T any](ctx context.Context, s *Service, report string, q Query, build buildFunc[T]) (T, error) {
	var zero T
	if s == nil || s.Invoices == nil {
		return zero, common.ErrInternal(fmt.Errorf("analytics service not configured"))
	}
	owner, err := common.RequireUserID(ctx)
	if err != nil {
		return zero, err
	}
	start := time.Now()
	logger := zerolog.Ctx(ctx)

	version, verr := s.Cache.Version(ctx, owner)
	if verr != nil {
		logger.Warn().Err(verr).Str("report", report).Msg("report cache version lookup failed")
	}
	loc, st, err := s.Settings.Location(ctx, s.Location)
	if err != nil {
		return zero, err
	}
	params := q.params()
	if clockReports[report] {
		params = append(params, s.now().In(loc).Format(time.DateOnly))
	}
	key := cache.ReportKey(owner, version, report, params...)
	if verr == nil {
		var out T
		hit, err := s.Cache.GetJSON(ctx, key, &out)
		if err != nil {
			logger.Warn().Err(err).Str("report", report).Msg("report cache read failed")
		}
		if hit {
			obs.ObserveReport(report, true, millisSince(start))
			return out, nil
		}
	}

	out, err := build(ctx, loc, st)
	if err != nil {
		return zero, repo.AppError(report, err)
	}
	if verr == nil {
		if err := s.Cache.SetJSON(ctx, key, out); err != nil {
			logger.Warn().Err(err).Str("report", report).Msg("report cache write failed")
		}
	}
	obs.ObserveReport(report, false, millisSince(start))
	return out, nil
}

func millisSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
