package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Segment is the categorical classification of a customer.
type Segment string

// Customer segments.
const (
	SegmentVIP      Segment = "VIP"
	SegmentRegular  Segment = "Regular"
	SegmentNew      Segment = "New"
	SegmentInactive Segment = "Inactive"
)

// Segmentation thresholds. These are business constants, not settings.
const (
	InactiveAfterDays   = 90
	VIPMinPurchases     = 10
	RegularMinPurchases = 2
)

var (
	VIPMinValue     = decimal.NewFromInt(100000)
	RegularMinValue = decimal.NewFromInt(10000)
)

// CustomerSegment is one row of the customer segmentation report.
type CustomerSegment struct {
	CustomerID        string          `json:"customer_id"`
	CustomerName      string          `json:"customer_name"`
	Phone             string          `json:"phone"`
	TotalPurchases    int             `json:"total_purchases"`
	TotalValue        decimal.Decimal `json:"total_value"`
	PurchaseCount     int             `json:"purchase_count"`
	LastPurchaseDate  *time.Time      `json:"last_purchase_date"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Segment           Segment         `json:"segment"`
}

// PerformanceMetrics summarises store activity over a date range.
// ConversionRate is transactions per active customer, a proxy rather than a
// visit-to-purchase funnel rate.
type PerformanceMetrics struct {
	AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
	TotalTransactions       int             `json:"total_transactions"`
	TotalRevenue            decimal.Decimal `json:"total_revenue"`
	ConversionRate          float64         `json:"conversion_rate"`
	CustomerAcquisitionRate float64         `json:"customer_acquisition_rate"`
	PeriodStart             string          `json:"period_start"`
	PeriodEnd               string          `json:"period_end"`
}

// Classify assigns a segment. Rules are evaluated in order and the first match wins.
func Classify(purchaseCount int, totalValue decimal.Decimal, lastPurchase *time.Time, now time.Time) Segment {
	switch {
	case purchaseCount == 0:
		return SegmentNew
	case lastPurchase == nil:
		return SegmentInactive
	case wholeDaysBetween(*lastPurchase, now) > InactiveAfterDays:
		return SegmentInactive
	case totalValue.GreaterThanOrEqual(VIPMinValue) || purchaseCount >= VIPMinPurchases:
		return SegmentVIP
	case purchaseCount >= RegularMinPurchases || totalValue.GreaterThanOrEqual(RegularMinValue):
		return SegmentRegular
	default:
		return SegmentNew
	}
}

// SegmentCustomers computes purchase statistics for every customer and
// classifies them, highest total value first. Invoices without a customer or
// for a customer not in the list are ignored.
func SegmentCustomers(customers []Customer, invoices []Invoice, now time.Time) []CustomerSegment {
	rows := make([]CustomerSegment, len(customers))
	index := make(map[string]int, len(customers))
	for i, c := range customers {
		rows[i] = CustomerSegment{
			CustomerID:        c.ID,
			CustomerName:      c.Name,
			Phone:             c.Phone,
			TotalValue:        decimal.Zero,
			AverageOrderValue: decimal.Zero,
		}
		index[c.ID] = i
	}
	for _, inv := range invoices {
		if inv.CustomerID == nil {
			continue
		}
		i, ok := index[*inv.CustomerID]
		if !ok {
			continue
		}
		row := &rows[i]
		row.TotalValue = row.TotalValue.Add(inv.TotalAmount)
		row.PurchaseCount++
		row.TotalPurchases++
		if row.LastPurchaseDate == nil || inv.CreatedAt.After(*row.LastPurchaseDate) {
			created := inv.CreatedAt
			row.LastPurchaseDate = &created
		}
	}
	for i := range rows {
		row := &rows[i]
		if row.PurchaseCount > 0 {
			row.AverageOrderValue = row.TotalValue.Div(decimal.NewFromInt(int64(row.PurchaseCount)))
		}
		row.Segment = Classify(row.PurchaseCount, row.TotalValue, row.LastPurchaseDate, now)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalValue.GreaterThan(rows[j].TotalValue)
	})
	return rows
}

// Performance computes transaction and acquisition metrics for invoices and
// customers falling inside period, using store-local dates.
func Performance(invoices []Invoice, customers []Customer, period DateRange, loc *time.Location) PerformanceMetrics {
	m := PerformanceMetrics{
		AverageTransactionValue: decimal.Zero,
		TotalRevenue:            decimal.Zero,
		PeriodStart:             period.Start,
		PeriodEnd:               period.End,
	}
	active := make(map[string]struct{})
	for _, inv := range invoices {
		if !period.Contains(inv.CreatedAt, loc) {
			continue
		}
		m.TotalTransactions++
		m.TotalRevenue = m.TotalRevenue.Add(inv.TotalAmount)
		if inv.CustomerID != nil {
			active[*inv.CustomerID] = struct{}{}
		}
	}
	if m.TotalTransactions > 0 {
		m.AverageTransactionValue = m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalTransactions)))
	}
	newCustomers := 0
	for _, c := range customers {
		if period.Contains(c.CreatedAt, loc) {
			newCustomers++
		}
	}
	if len(customers) > 0 {
		m.CustomerAcquisitionRate = float64(newCustomers) / float64(len(customers)) * 100
	}
	if len(active) > 0 {
		m.ConversionRate = float64(m.TotalTransactions) / float64(len(active))
	}
	return m
}
