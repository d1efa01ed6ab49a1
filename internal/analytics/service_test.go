package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jewellery/internal/cache"
	"github.com/noah-isme/backend-jewellery/internal/common"
	"github.com/noah-isme/backend-jewellery/internal/repo"
	"github.com/noah-isme/backend-jewellery/internal/reports"
)

type stubInvoices struct {
	invoices []repo.Invoice
	lines    []repo.SaleLine
	listed   atomic.Int32
	filters  []repo.InvoiceFilter
}

func (s *stubInvoices) List(_ context.Context, f repo.InvoiceFilter) ([]repo.Invoice, error) {
	s.listed.Add(1)
	s.filters = append(s.filters, f)
	out := make([]repo.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if f.From != nil && inv.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !inv.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *stubInvoices) Lines(_ context.Context, f repo.InvoiceFilter) ([]repo.SaleLine, error) {
	out := make([]repo.SaleLine, 0, len(s.lines))
	for _, l := range s.lines {
		if f.From != nil && l.SoldAt.Before(*f.From) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

type stubCustomers []repo.Customer

func (s stubCustomers) All(context.Context) ([]repo.Customer, error) { return s, nil }

type stubItems []repo.Item

func (s stubItems) All(context.Context) ([]repo.Item, error) { return s, nil }

type stubSettings struct {
	tz        string
	threshold int
}

func (s stubSettings) Location(_ context.Context, fallback *time.Location) (*time.Location, repo.Settings, error) {
	st := repo.DefaultSettings()
	if s.threshold > 0 {
		st.StockAlertThreshold = s.threshold
	}
	if s.tz == "" {
		return fallback, st, nil
	}
	loc, err := time.LoadLocation(s.tz)
	return loc, st, err
}

type fixedRate string

func (r fixedRate) DefaultRate(context.Context) decimal.Decimal { return decimal.RequireFromString(string(r)) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strp(s string) *string { return &s }

func ownerCtx() context.Context {
	return common.WithUserID(context.Background(), "owner-1")
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, time.Minute)
}

// 2024-05-10 20:00 UTC is already 2024-05-11 in Kolkata.
func newService(t *testing.T) (*Service, *stubInvoices) {
	t.Helper()
	invoices := &stubInvoices{
		invoices: []repo.Invoice{
			{ID: "i1", InvoiceNumber: "INV-001", CustomerID: strp("c1"), CreatedAt: time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC),
				GoldValue: dec("10000"), MakingCharges: dec("1000"), GSTAmount: dec("330"), TotalAmount: dec("11330")},
			{ID: "i2", InvoiceNumber: "INV-002", CreatedAt: time.Date(2024, 5, 10, 20, 0, 0, 0, time.UTC),
				GoldValue: dec("5000"), MakingCharges: dec("500"), GSTAmount: dec("165"), TotalAmount: dec("5665")},
		},
		lines: []repo.SaleLine{
			{InvoiceLine: repo.InvoiceLine{InvoiceID: "i1", ItemID: "ring", ItemName: strp("Ring"), SKU: strp("R-1"), MetalType: strp("Gold"),
				Quantity: 2, Price: dec("11000")}, SoldAt: time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC), CustomerID: strp("c1")},
			{InvoiceLine: repo.InvoiceLine{InvoiceID: "i2", ItemID: "gone", Quantity: 1, Price: dec("5500")},
				SoldAt: time.Date(2024, 5, 10, 20, 0, 0, 0, time.UTC)},
		},
	}
	svc := &Service{
		Invoices:  invoices,
		Customers: stubCustomers{{ID: "c1", Name: "Asha", Phone: "98", CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}},
		Items: stubItems{
			{ID: "ring", Name: "Ring", SKU: "R-1", MetalType: "Gold", NetWeight: dec("5"), MakingCharge: dec("500"), Quantity: 2},
			{ID: "bangle", Name: "Bangle", SKU: "B-1", MetalType: "Silver", NetWeight: dec("20"), MakingCharge: dec("100"), Quantity: 10},
		},
		Settings: stubSettings{tz: "Asia/Kolkata"},
		Rates:    fixedRate("6000"),
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC) },
	}
	return svc, invoices
}

func TestDailyUsesStoreTimezone(t *testing.T) {
	svc, _ := newService(t)
	out, err := svc.Daily(ownerCtx(), Query{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "2024-05-11", out[0].Date)
	require.Equal(t, "2024-05-10", out[1].Date)
	require.Equal(t, "11330", out[1].TotalRevenue.String())
}

func TestReportDatesAreInclusiveLocalDays(t *testing.T) {
	svc, invoices := newService(t)
	out, err := svc.GST(ownerCtx(), Query{Start: "2024-05-11", End: "2024-05-11"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Summary.TotalInvoices)
	require.Equal(t, "165", out.Summary.TotalGST.String())

	f := invoices.filters[len(invoices.filters)-1]
	require.Equal(t, time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC), f.From.UTC())
	require.Equal(t, time.Date(2024, 5, 11, 18, 30, 0, 0, time.UTC), f.To.UTC())
}

func TestReportRejectsBadDates(t *testing.T) {
	svc, _ := newService(t)
	cases := []Query{
		{Start: "11/05/2024"},
		{End: "tomorrow"},
		{Start: "2024-05-12", End: "2024-05-11"},
	}
	for _, q := range cases {
		_, err := svc.Daily(ownerCtx(), q)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus, q)
	}
}

func TestReportRequiresOwner(t *testing.T) {
	svc, invoices := newService(t)
	_, err := svc.Daily(context.Background(), Query{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
	require.Zero(t, invoices.listed.Load())
}

func TestReportsAreCachedUntilBump(t *testing.T) {
	svc, invoices := newService(t)
	svc.Cache = newCache(t)
	ctx := ownerCtx()

	first, err := svc.Daily(ctx, Query{})
	require.NoError(t, err)
	second, err := svc.Daily(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, int32(1), invoices.listed.Load())
	require.Equal(t, first[0].Date, second[0].Date)
	require.True(t, first[0].TotalRevenue.Equal(second[0].TotalRevenue))

	// different parameters are a different entry
	_, err = svc.Daily(ctx, Query{Start: "2024-05-11"})
	require.NoError(t, err)
	require.Equal(t, int32(2), invoices.listed.Load())

	require.NoError(t, svc.Cache.Bump(ctx, "owner-1"))
	_, err = svc.Daily(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, int32(3), invoices.listed.Load())

	// another owner never sees owner-1's entry
	_, err = svc.Daily(common.WithUserID(context.Background(), "owner-2"), Query{})
	require.NoError(t, err)
	require.Equal(t, int32(4), invoices.listed.Load())
}

func TestCustomerSegmentsSortedAndCached(t *testing.T) {
	svc, invoices := newService(t)
	svc.Cache = newCache(t)
	svc.Customers = stubCustomers{
		{ID: "c1", Name: "Asha", Phone: "98", CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "c9", Name: "Meera", Phone: "99", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "c3", Name: "Ravi", Phone: "97", CreatedAt: time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
	}
	for i := 0; i < 12; i++ {
		invoices.invoices = append(invoices.invoices, repo.Invoice{
			ID: "v" + strconv.Itoa(i), CustomerID: strp("c9"), TotalAmount: dec("12500"),
			CreatedAt: time.Date(2024, 5, 8+i, 9, 0, 0, 0, time.UTC),
		})
	}
	ctx := ownerCtx()

	rows, err := svc.Segments(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"c9", "c1", "c3"}, []string{rows[0].CustomerID, rows[1].CustomerID, rows[2].CustomerID})
	require.Equal(t, reports.SegmentVIP, rows[0].Segment)
	require.Equal(t, 12, rows[0].PurchaseCount)
	require.Equal(t, "150000", rows[0].TotalValue.String())
	require.Equal(t, "12500", rows[0].AverageOrderValue.String())
	require.Equal(t, reports.SegmentRegular, rows[1].Segment)
	require.Equal(t, reports.SegmentNew, rows[2].Segment)
	require.Nil(t, rows[2].LastPurchaseDate)
	require.True(t, rows[2].TotalValue.IsZero())
	for i := 1; i < len(rows); i++ {
		require.False(t, rows[i].TotalValue.GreaterThan(rows[i-1].TotalValue))
	}
	require.Equal(t, int32(1), invoices.listed.Load())

	again, err := svc.Segments(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), invoices.listed.Load())
	require.Equal(t, rows[0].CustomerID, again[0].CustomerID)
	require.True(t, rows[0].TotalValue.Equal(again[0].TotalValue))
	require.Equal(t, reports.SegmentVIP, again[0].Segment)

	require.NoError(t, svc.Cache.Bump(ctx, "owner-1"))
	_, err = svc.Segments(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), invoices.listed.Load())
}

func TestClockReportsExpireWithStoreDay(t *testing.T) {
	svc, invoices := newService(t)
	svc.Cache = newCache(t)
	ctx := ownerCtx()
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	_, err := svc.Segments(ctx)
	require.NoError(t, err)
	_, err = svc.Performance(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, int32(2), invoices.listed.Load())

	// still 2024-05-20 in Kolkata
	now = now.Add(6 * time.Hour)
	_, err = svc.Segments(ctx)
	require.NoError(t, err)
	_, err = svc.Performance(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, int32(2), invoices.listed.Load())

	// 2024-05-21 00:30 in Kolkata
	now = now.Add(time.Hour)
	_, err = svc.Segments(ctx)
	require.NoError(t, err)
	perf, err := svc.Performance(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, int32(4), invoices.listed.Load())
	require.Equal(t, "2024-05-21", perf.PeriodEnd)

	// date-only reports keep their entry across days
	_, err = svc.Daily(ctx, Query{})
	require.NoError(t, err)
	now = now.AddDate(0, 0, 1)
	_, err = svc.Daily(ctx, Query{})
	require.NoError(t, err)
	require.Equal(t, int32(5), invoices.listed.Load())
}

func TestTopSellingAndSold(t *testing.T) {
	svc, _ := newService(t)
	top, err := svc.TopSelling(ownerCtx(), Query{})
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "ring", top[0].ItemID)
	require.Equal(t, 2, top[0].QuantitySold)

	sold, err := svc.Sold(ownerCtx(), Query{MetalType: "Gold"})
	require.NoError(t, err)
	require.Len(t, sold, 1)
	require.Equal(t, "Ring", sold[0].ItemName)
}

func TestStockUsesAlertThreshold(t *testing.T) {
	svc, _ := newService(t)
	out, err := svc.Stock(ownerCtx())
	require.NoError(t, err)
	require.Equal(t, 2, out.TotalItems)
	require.Equal(t, 12, out.TotalQuantity)
	require.Equal(t, 1, out.LowStockItems)

	svc.Settings = stubSettings{tz: "Asia/Kolkata", threshold: 11}
	out, err = svc.Stock(ownerCtx())
	require.NoError(t, err)
	require.Equal(t, 2, out.LowStockItems)
}

func TestInventoryFallsBackToLiveRate(t *testing.T) {
	svc, _ := newService(t)
	out, err := svc.Inventory(ownerCtx(), Query{})
	require.NoError(t, err)
	require.Equal(t, 90, out.AnalysisPeriodDays)
	// ring: (5*6000+500)*2 = 61000; bangle: (20*60+100)*10 = 13000
	require.Equal(t, "61000", out.StockValue.ByMetalType["Gold"].String())
	require.Equal(t, "13000", out.StockValue.ByMetalType["Silver"].String())

	out, err = svc.Inventory(ownerCtx(), Query{GoldRate: dec("7000"), Days: 5})
	require.NoError(t, err)
	require.Equal(t, 5, out.AnalysisPeriodDays)
	require.Equal(t, "71000", out.StockValue.ByMetalType["Gold"].String())
	require.Zero(t, out.TotalItemsSold)
}

func TestPerformanceDefaultsToTrailingMonth(t *testing.T) {
	svc, _ := newService(t)
	out, err := svc.Performance(ownerCtx(), Query{})
	require.NoError(t, err)
	require.Equal(t, 2, out.TotalTransactions)
	require.Equal(t, "2024-05-20", out.PeriodEnd)

	out, err = svc.Performance(ownerCtx(), Query{Start: "2024-05-11", End: "2024-05-12"})
	require.NoError(t, err)
	require.Equal(t, 1, out.TotalTransactions)
	require.Equal(t, "2024-05-11", out.PeriodStart)
}

func TestHandlersParseQuery(t *testing.T) {
	svc, _ := newService(t)
	h := &Handler{Svc: svc}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/inventory?gold_rate=abc", nil).WithContext(ownerCtx())
	h.Inventory(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/top-selling?limit=1", nil).WithContext(ownerCtx())
	h.TopSelling(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"item_id":"ring"`)
	require.NotContains(t, rr.Body.String(), `"item_id":"gone"`)

	rr = httptest.NewRecorder()
	h.Daily(rr, httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
