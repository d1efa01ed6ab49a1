package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoicesCreatedTotal counts invoice creation outcomes.
	InvoicesCreatedTotal *prometheus.CounterVec
	// InvoiceAmountINR records invoice grand totals in rupees.
	InvoiceAmountINR prometheus.Histogram
	// ReportBuildDuration records report build latency in milliseconds, cache hits included.
	ReportBuildDuration *prometheus.HistogramVec
	// ReportCacheTotal counts report cache lookups by outcome.
	ReportCacheTotal *prometheus.CounterVec
	// GoldRateFetchTotal counts live rate lookups by source and outcome.
	GoldRateFetchTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InvoicesCreatedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Count of invoice creation attempts by outcome.",
		}, []string{"result"}))
		InvoiceAmountINR = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_amount_inr",
			Help:      "Distribution of invoice grand totals in INR.",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
		}))
		ReportBuildDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_build_duration_ms",
			Help:      "Latency for building reports in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"report"}))
		ReportCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Count of report cache lookups by outcome.",
		}, []string{"report", "result"}))
		GoldRateFetchTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gold_rate_fetch_total",
			Help:      "Count of gold rate lookups by source and outcome.",
		}, []string{"source", "result"}))
	})
}

// ObserveInvoice records a created invoice. It is a no-op before registration.
func ObserveInvoice(result string, total float64) {
	if InvoicesCreatedTotal != nil {
		InvoicesCreatedTotal.WithLabelValues(result).Inc()
	}
	if InvoiceAmountINR != nil && result == "ok" {
		InvoiceAmountINR.Observe(total)
	}
}

// ObserveReport records a report build. It is a no-op before registration.
func ObserveReport(report string, cached bool, millis float64) {
	if ReportBuildDuration != nil {
		ReportBuildDuration.WithLabelValues(report).Observe(millis)
	}
	if ReportCacheTotal != nil {
		result := "miss"
		if cached {
			result = "hit"
		}
		ReportCacheTotal.WithLabelValues(report, result).Inc()
	}
}

// ObserveGoldRate records a gold rate lookup. It is a no-op before registration.
func ObserveGoldRate(source, result string) {
	if GoldRateFetchTotal != nil {
		GoldRateFetchTotal.WithLabelValues(source, result).Inc()
	}
}
