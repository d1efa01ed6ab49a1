package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailySales summarises the invoices raised on one calendar date.
type DailySales struct {
	Date               string          `json:"date"`
	TotalInvoices      int             `json:"total_invoices"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalGST           decimal.Decimal `json:"total_gst"`
	TotalGoldValue     decimal.Decimal `json:"total_gold_value"`
	TotalMakingCharges decimal.Decimal `json:"total_making_charges"`
}

// GSTMonth summarises one calendar month of invoices for tax filing.
type GSTMonth struct {
	Month         string          `json:"month"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalGST      decimal.Decimal `json:"total_gst"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	InvoiceCount  int             `json:"invoice_count"`
}

// GSTSummary totals every month of a GST report.
type GSTSummary struct {
	TotalSales         decimal.Decimal `json:"total_sales"`
	TotalGST           decimal.Decimal `json:"total_gst"`
	TotalTaxableAmount decimal.Decimal `json:"total_taxable_amount"`
	TotalInvoices      int             `json:"total_invoices"`
}

// GSTReport is the monthly breakdown plus overall summary.
type GSTReport struct {
	MonthlyBreakdown []GSTMonth `json:"monthly_breakdown"`
	Summary          GSTSummary `json:"summary"`
}

// DailySalesReport buckets invoices by the store-local calendar date of creation,
// newest date first.
func DailySalesReport(invoices []Invoice, loc *time.Location) []DailySales {
	buckets := make(map[string]*DailySales)
	for _, inv := range invoices {
		key := localDate(inv.CreatedAt, loc)
		b, ok := buckets[key]
		if !ok {
			b = &DailySales{
				Date:               key,
				TotalRevenue:       decimal.Zero,
				TotalGST:           decimal.Zero,
				TotalGoldValue:     decimal.Zero,
				TotalMakingCharges: decimal.Zero,
			}
			buckets[key] = b
		}
		b.TotalInvoices++
		b.TotalRevenue = b.TotalRevenue.Add(inv.TotalAmount)
		b.TotalGST = b.TotalGST.Add(inv.GSTAmount)
		b.TotalGoldValue = b.TotalGoldValue.Add(inv.GoldValue)
		b.TotalMakingCharges = b.TotalMakingCharges.Add(inv.MakingCharges)
	}
	out := make([]DailySales, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// GSTMonthlyReport buckets invoices by store-local year and month, oldest month first.
func GSTMonthlyReport(invoices []Invoice, loc *time.Location) GSTReport {
	buckets := make(map[string]*GSTMonth)
	for _, inv := range invoices {
		key := inv.CreatedAt.In(orUTC(loc)).Format(monthLayout)
		b, ok := buckets[key]
		if !ok {
			b = &GSTMonth{Month: key, TotalSales: decimal.Zero, TotalGST: decimal.Zero, TaxableAmount: decimal.Zero}
			buckets[key] = b
		}
		b.TotalSales = b.TotalSales.Add(inv.TotalAmount)
		b.TotalGST = b.TotalGST.Add(inv.GSTAmount)
		b.TaxableAmount = b.TaxableAmount.Add(inv.TotalAmount.Sub(inv.GSTAmount))
		b.InvoiceCount++
	}
	report := GSTReport{
		MonthlyBreakdown: make([]GSTMonth, 0, len(buckets)),
		Summary: GSTSummary{
			TotalSales:         decimal.Zero,
			TotalGST:           decimal.Zero,
			TotalTaxableAmount: decimal.Zero,
			TotalInvoices:      len(invoices),
		},
	}
	for _, b := range buckets {
		report.MonthlyBreakdown = append(report.MonthlyBreakdown, *b)
	}
	sort.Slice(report.MonthlyBreakdown, func(i, j int) bool {
		return report.MonthlyBreakdown[i].Month < report.MonthlyBreakdown[j].Month
	})
	for _, m := range report.MonthlyBreakdown {
		report.Summary.TotalSales = report.Summary.TotalSales.Add(m.TotalSales)
		report.Summary.TotalGST = report.Summary.TotalGST.Add(m.TotalGST)
		report.Summary.TotalTaxableAmount = report.Summary.TotalTaxableAmount.Add(m.TaxableAmount)
	}
	return report
}
