package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Movement analysis constants.
const (
	DefaultMovementDays  = 90
	FastMovingMinTimes   = 3
	FastMovingMinQty     = 10
	SlowMovingAfterDays  = 60
	MovementListLimit    = 10
	DefaultLowStockLevel = 5
)

var (
	silverRateDivisor    = decimal.NewFromInt(100)
	otherMetalMultiplier = decimal.NewFromInt(10)
)

// ItemMovement describes how an inventory item sold over the analysis window.
type ItemMovement struct {
	ItemID            string     `json:"item_id"`
	ItemName          string     `json:"item_name"`
	SKU               string     `json:"sku"`
	MetalType         string     `json:"metal_type"`
	QuantitySold      int        `json:"quantity_sold"`
	TimesSold         int        `json:"times_sold"`
	LastSoldDate      *time.Time `json:"last_sold_date"`
	DaysSinceLastSale *int       `json:"days_since_last_sale"`
}

// StockValue is the estimated value of stock on hand.
type StockValue struct {
	Total       decimal.Decimal            `json:"total"`
	ByMetalType map[string]decimal.Decimal `json:"by_metal_type"`
}

// InventoryReport is the inventory analytics payload.
type InventoryReport struct {
	StockValue         StockValue     `json:"stock_value"`
	FastMovingItems    []ItemMovement `json:"fast_moving_items"`
	SlowMovingItems    []ItemMovement `json:"slow_moving_items"`
	TurnoverRate       float64        `json:"turnover_rate"`
	TotalItemsSold     int            `json:"total_items_sold"`
	TotalItemsInStock  int            `json:"total_items_in_stock"`
	AnalysisPeriodDays int            `json:"analysis_period_days"`
}

// StockSummaryReport counts inventory rows by metal type.
type StockSummaryReport struct {
	TotalItems        int `json:"total_items"`
	TotalQuantity     int `json:"total_quantity"`
	TotalGoldItems    int `json:"total_gold_items"`
	TotalSilverItems  int `json:"total_silver_items"`
	TotalDiamondItems int `json:"total_diamond_items"`
	LowStockItems     int `json:"low_stock_items"`
}

// EstimateItemValue values one unit of an item at goldRate per gram.
// Silver is approximated at one hundredth of the gold rate and any other
// metal at ten times its making charge.
func EstimateItemValue(item Item, goldRate decimal.Decimal) decimal.Decimal {
	switch item.MetalType {
	case MetalGold:
		return item.NetWeight.Mul(goldRate).Add(item.MakingCharge)
	case MetalSilver:
		return item.NetWeight.Mul(goldRate.Div(silverRateDivisor)).Add(item.MakingCharge)
	default:
		return item.MakingCharge.Mul(otherMetalMultiplier)
	}
}

// InventoryAnalytics values current stock and classifies item movement over
// the trailing window of days ending at now. Sales outside the window or for
// items not in the list are ignored.
func InventoryAnalytics(items []Item, sales []LineSale, goldRate decimal.Decimal, days int, now time.Time) InventoryReport {
	if days <= 0 {
		days = DefaultMovementDays
	}
	report := InventoryReport{
		StockValue:         StockValue{Total: decimal.Zero, ByMetalType: map[string]decimal.Decimal{}},
		AnalysisPeriodDays: days,
	}

	movements := make([]ItemMovement, len(items))
	index := make(map[string]int, len(items))
	for i, item := range items {
		value := EstimateItemValue(item, goldRate).Mul(decimal.NewFromInt(int64(item.Quantity)))
		report.StockValue.Total = report.StockValue.Total.Add(value)
		report.StockValue.ByMetalType[item.MetalType] = report.StockValue.ByMetalType[item.MetalType].Add(value)
		report.TotalItemsInStock += item.Quantity

		movements[i] = ItemMovement{ItemID: item.ID, ItemName: item.Name, SKU: item.SKU, MetalType: item.MetalType}
		index[item.ID] = i
	}

	cutoff := now.AddDate(0, 0, -days)
	for _, s := range sales {
		if s.SoldAt.Before(cutoff) {
			continue
		}
		i, ok := index[s.ItemID]
		if !ok {
			continue
		}
		m := &movements[i]
		m.QuantitySold += s.Quantity
		m.TimesSold++
		if m.LastSoldDate == nil || s.SoldAt.After(*m.LastSoldDate) {
			soldAt := s.SoldAt
			since := wholeDaysBetween(soldAt, now)
			m.LastSoldDate = &soldAt
			m.DaysSinceLastSale = &since
		}
	}

	for _, m := range movements {
		report.TotalItemsSold += m.QuantitySold
	}
	if denom := report.TotalItemsInStock + report.TotalItemsSold; denom > 0 {
		report.TurnoverRate = float64(report.TotalItemsSold) / float64(denom) * 100
	}

	report.FastMovingItems = fastMoving(movements)
	report.SlowMovingItems = slowMoving(movements)
	return report
}

func fastMoving(movements []ItemMovement) []ItemMovement {
	out := make([]ItemMovement, 0)
	for _, m := range movements {
		if m.TimesSold >= FastMovingMinTimes || m.QuantitySold >= FastMovingMinQty {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].QuantitySold > out[j].QuantitySold })
	return limit(out, MovementListLimit)
}

func slowMoving(movements []ItemMovement) []ItemMovement {
	out := make([]ItemMovement, 0)
	for _, m := range movements {
		if m.TimesSold == 0 || (m.DaysSinceLastSale != nil && *m.DaysSinceLastSale > SlowMovingAfterDays) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TimesSold == 0 || b.TimesSold == 0 {
			return a.TimesSold != 0 && b.TimesSold == 0
		}
		return *a.DaysSinceLastSale > *b.DaysSinceLastSale
	})
	return limit(out, MovementListLimit)
}

// StockSummary counts items and units on hand. Items with quantity below
// lowStock are counted as low stock; lowStock <= 0 uses the default level.
func StockSummary(items []Item, lowStock int) StockSummaryReport {
	if lowStock <= 0 {
		lowStock = DefaultLowStockLevel
	}
	var s StockSummaryReport
	s.TotalItems = len(items)
	for _, item := range items {
		s.TotalQuantity += item.Quantity
		switch item.MetalType {
		case MetalGold:
			s.TotalGoldItems++
		case MetalSilver:
			s.TotalSilverItems++
		case MetalDiamond:
			s.TotalDiamondItems++
		}
		if item.Quantity < lowStock {
			s.LowStockItems++
		}
	}
	return s
}

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
