package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jewellery/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("jewellery", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/inventory/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/abc", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/inventory/{id}", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
		t.Fatalf("expected no in-flight requests, got %v", val)
	}
}

func TestRequestLoggerPicksUpContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/api/v1/reports/daily", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("owner_id", "owner-1")
		})
		w.WriteHeader(http.StatusBadRequest)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected warn level for 400, got %v", entry["level"])
	}
	if entry["route"] != "/api/v1/reports/daily" {
		t.Fatalf("unexpected route %v", entry["route"])
	}
	if entry["owner_id"] != "owner-1" {
		t.Fatalf("expected owner_id from handler, got %v", entry["owner_id"])
	}
}

func TestDomainMetricsObserve(t *testing.T) {
	obs.MustRegisterDomainMetrics("jewellery_test", prometheus.NewRegistry())
	obs.ObserveInvoice("ok", 28325)
	obs.ObserveReport("daily", true, 3)
	obs.ObserveGoldRate("feed", "ok")

	if got := testutil.ToFloat64(obs.InvoicesCreatedTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected one invoice, got %v", got)
	}
	if got := testutil.ToFloat64(obs.ReportCacheTotal.WithLabelValues("daily", "hit")); got != 1 {
		t.Fatalf("expected one cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(obs.GoldRateFetchTotal.WithLabelValues("feed", "ok")); got != 1 {
		t.Fatalf("expected one fetch, got %v", got)
	}
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("jewellery", nil, registry)
	second := obs.NewHTTPMetrics("jewellery", nil, registry)

	second.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/reports/daily", "200").Inc()
	if got := testutil.ToFloat64(first.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/reports/daily", "200")); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
	if first.InFlight != second.InFlight {
		t.Fatalf("expected the registered gauge to be reused")
	}
}

func TestParseBucketsCSV(t *testing.T) {
	got := obs.ParseBucketsCSV(" 250, 5,x,-1, 50,5 ,,1000")
	want := []float64{5, 50, 250, 1000}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}
	if obs.ParseBucketsCSV("  ") != nil {
		t.Fatalf("expected nil buckets for blank input")
	}
}
