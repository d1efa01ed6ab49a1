package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopSellingLimit caps the top-selling report when no limit is given.
const DefaultTopSellingLimit = 10

// costRatio is the flat cost assumption applied to line revenue.
var costRatio = decimal.RequireFromString("0.8")

// ItemSales aggregates every sold line of one item.
type ItemSales struct {
	ItemID       string          `json:"item_id"`
	ItemName     string          `json:"item_name"`
	SKU          string          `json:"sku"`
	MetalType    string          `json:"metal_type"`
	QuantitySold int             `json:"quantity_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TimesSold    int             `json:"times_sold"`
	LastSoldDate time.Time       `json:"last_sold_date"`
}

// SoldFilter narrows the sold-items report. Empty fields match everything.
type SoldFilter struct {
	CustomerID string
	MetalType  string
}

func (f SoldFilter) match(s LineSale) bool {
	if f.CustomerID != "" && (s.CustomerID == nil || *s.CustomerID != f.CustomerID) {
		return false
	}
	if f.MetalType != "" && s.metal() != f.MetalType {
		return false
	}
	return true
}

// MetalProfit is the estimated profit for one metal type.
type MetalProfit struct {
	MetalType string          `json:"metal_type"`
	Revenue   decimal.Decimal `json:"revenue"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
	Margin    float64         `json:"margin"`
}

// ProfitReport is the estimated profit margin payload.
type ProfitReport struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	ProfitMargin float64         `json:"profit_margin"`
	ByMetalType  []MetalProfit   `json:"by_metal_type"`
}

func groupByItem(sales []LineSale, keep func(LineSale) bool) []ItemSales {
	groups := make(map[string]*ItemSales)
	order := make([]string, 0)
	for _, s := range sales {
		if keep != nil && !keep(s) {
			continue
		}
		g, ok := groups[s.ItemID]
		if !ok {
			g = &ItemSales{
				ItemID:       s.ItemID,
				ItemName:     s.name(),
				SKU:          s.sku(),
				MetalType:    s.metal(),
				TotalRevenue: decimal.Zero,
				LastSoldDate: s.SoldAt,
			}
			groups[s.ItemID] = g
			order = append(order, s.ItemID)
		}
		g.QuantitySold += s.Quantity
		g.TotalRevenue = g.TotalRevenue.Add(s.Revenue())
		g.TimesSold++
		if s.SoldAt.After(g.LastSoldDate) {
			g.LastSoldDate = s.SoldAt
		}
	}
	out := make([]ItemSales, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	return out
}

// TopSelling ranks items by quantity sold, highest first, keeping at most n.
func TopSelling(sales []LineSale, n int) []ItemSales {
	if n <= 0 {
		n = DefaultTopSellingLimit
	}
	out := groupByItem(sales, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].QuantitySold > out[j].QuantitySold })
	return limit(out, n)
}

// SoldItems lists every sold item matching f, most recently sold first.
func SoldItems(sales []LineSale, f SoldFilter) []ItemSales {
	out := groupByItem(sales, f.match)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSoldDate.After(out[j].LastSoldDate) })
	return out
}

// ProfitMargin estimates profit for invoices with cost fixed at 80% of line
// revenue. Overall revenue is the sum of invoice totals, so GST counts as
// profit at the overall level but not per metal type. Lines whose invoice is
// not in invoices are ignored.
func ProfitMargin(invoices []Invoice, sales []LineSale) ProfitReport {
	report := ProfitReport{
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		TotalProfit:  decimal.Zero,
		ByMetalType:  make([]MetalProfit, 0),
	}
	included := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		included[inv.ID] = struct{}{}
		report.TotalRevenue = report.TotalRevenue.Add(inv.TotalAmount)
	}

	byMetal := make(map[string]*MetalProfit)
	for _, s := range sales {
		if _, ok := included[s.InvoiceID]; !ok {
			continue
		}
		revenue := s.Revenue()
		cost := revenue.Mul(costRatio)
		report.TotalCost = report.TotalCost.Add(cost)

		metal := s.metal()
		m, ok := byMetal[metal]
		if !ok {
			m = &MetalProfit{MetalType: metal, Revenue: decimal.Zero, Cost: decimal.Zero, Profit: decimal.Zero}
			byMetal[metal] = m
		}
		m.Revenue = m.Revenue.Add(revenue)
		m.Cost = m.Cost.Add(cost)
		m.Profit = m.Profit.Add(revenue.Sub(cost))
	}

	report.TotalProfit = report.TotalRevenue.Sub(report.TotalCost)
	report.ProfitMargin = percent(report.TotalProfit, report.TotalRevenue)
	for _, m := range byMetal {
		m.Margin = percent(m.Profit, m.Revenue)
		report.ByMetalType = append(report.ByMetalType, *m)
	}
	sort.Slice(report.ByMetalType, func(i, j int) bool {
		return report.ByMetalType[i].MetalType < report.ByMetalType[j].MetalType
	})
	return report
}
