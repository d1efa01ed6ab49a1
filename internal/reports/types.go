// Package reports turns pre-fetched, owner-scoped rows into report summaries.
// Every function is pure: inputs are passed in, nothing is retained between calls.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metal types recognised by the stock valuation rules.
const (
	MetalGold    = "Gold"
	MetalSilver  = "Silver"
	MetalDiamond = "Diamond"
)

const (
	unknownLabel = "Unknown"
	unknownSKU   = "N/A"
	dateLayout   = "2006-01-02"
	monthLayout  = "2006-01"
	day          = 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// Invoice is the subset of an invoice row the reports read.
type Invoice struct {
	ID            string
	InvoiceNumber string
	CustomerID    *string
	CreatedAt     time.Time
	GoldValue     decimal.Decimal
	MakingCharges decimal.Decimal
	GSTAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
}

// Customer is the subset of a customer row the reports read.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}

// Item is an inventory row.
type Item struct {
	ID           string
	Name         string
	SKU          string
	MetalType    string
	NetWeight    decimal.Decimal
	MakingCharge decimal.Decimal
	Quantity     int
}

// ItemRef carries the catalogue fields joined onto a sold line. It is nil
// when the item has since been deleted.
type ItemRef struct {
	Name      string
	SKU       string
	MetalType string
}

// LineSale is an invoice line joined with its invoice date and customer.
type LineSale struct {
	InvoiceID  string
	ItemID     string
	CustomerID *string
	Quantity   int
	Price      decimal.Decimal
	SoldAt     time.Time
	Item       *ItemRef
}

// Revenue returns unit price times quantity.
func (l LineSale) Revenue() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l LineSale) name() string {
	if l.Item == nil || l.Item.Name == "" {
		return unknownLabel
	}
	return l.Item.Name
}

func (l LineSale) sku() string {
	if l.Item == nil || l.Item.SKU == "" {
		return unknownSKU
	}
	return l.Item.SKU
}

func (l LineSale) metal() string {
	if l.Item == nil || l.Item.MetalType == "" {
		return unknownLabel
	}
	return l.Item.MetalType
}

// DateRange is an inclusive range of calendar dates (YYYY-MM-DD). An empty
// bound leaves that side open.
type DateRange struct {
	Start string
	End   string
}

// Contains reports whether t falls on a date inside the range in loc.
func (r DateRange) Contains(t time.Time, loc *time.Location) bool {
	date := localDate(t, loc)
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// TrailingDays returns the range covering the n days before now up to today in loc.
func TrailingDays(now time.Time, n int, loc *time.Location) DateRange {
	end := now.In(orUTC(loc))
	start := end.AddDate(0, 0, -n)
	return DateRange{Start: start.Format(dateLayout), End: end.Format(dateLayout)}
}

func localDate(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format(dateLayout)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// wholeDaysBetween floors the elapsed time from then to now in days.
func wholeDaysBetween(then, now time.Time) int {
	elapsed := now.Sub(then)
	days := int(elapsed / day)
	if elapsed < 0 && elapsed%day != 0 {
		days--
	}
	return days
}

func percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
