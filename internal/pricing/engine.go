package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a weight, rate, charge or quantity is out of range.
var ErrInvalidInput = errors.New("pricing: invalid input")

var hundred = decimal.NewFromInt(100)

// Line describes a cart line used for invoice pricing.
type Line struct {
	ItemID              string
	Weight              decimal.Decimal
	Quantity            int
	MakingChargePerGram decimal.Decimal
}

// LineQuote holds the derived per-unit figures of a priced line.
type LineQuote struct {
	ItemID        string          `json:"item_id"`
	Weight        decimal.Decimal `json:"weight"`
	Quantity      int             `json:"quantity"`
	GoldValue     decimal.Decimal `json:"gold_value"`
	MakingCharges decimal.Decimal `json:"making_charges"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// Quote aggregates computed pricing components for a cart.
type Quote struct {
	Lines         []LineQuote     `json:"lines"`
	GoldRate      decimal.Decimal `json:"gold_rate"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	GoldValue     decimal.Decimal `json:"gold_value"`
	MakingCharges decimal.Decimal `json:"making_charges"`
	Taxable       decimal.Decimal `json:"taxable_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	Total         decimal.Decimal `json:"total_amount"`
}

// GoldValue returns the metal value of weight grams at ratePerGram.
func GoldValue(weight, ratePerGram decimal.Decimal) (decimal.Decimal, error) {
	if err := nonNegative("weight", weight); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("gold rate", ratePerGram); err != nil {
		return decimal.Zero, err
	}
	return weight.Mul(ratePerGram), nil
}

// MakingCharges returns the labour charge for weight grams. The charge is
// levied per gram, never as a flat per-item fee.
func MakingCharges(weight, chargePerGram decimal.Decimal) (decimal.Decimal, error) {
	if err := nonNegative("weight", weight); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("making charge", chargePerGram); err != nil {
		return decimal.Zero, err
	}
	return weight.Mul(chargePerGram), nil
}

// GST returns the tax on the combined base of metal value and making charges.
func GST(goldValue, makingCharges, ratePercent decimal.Decimal) (decimal.Decimal, error) {
	if err := nonNegative("gold value", goldValue); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("making charges", makingCharges); err != nil {
		return decimal.Zero, err
	}
	if err := nonNegative("gst rate", ratePercent); err != nil {
		return decimal.Zero, err
	}
	return goldValue.Add(makingCharges).Mul(ratePercent).Div(hundred), nil
}

// GrandTotal sums the three invoice components.
func GrandTotal(goldValue, makingCharges, gstAmount decimal.Decimal) decimal.Decimal {
	return goldValue.Add(makingCharges).Add(gstAmount)
}

// Compute prices a cart. GST is levied once on the aggregated gold value and
// making charges, never per line.
func Compute(lines []Line, goldRate, gstRate decimal.Decimal) (Quote, error) {
	if err := nonNegative("gold rate", goldRate); err != nil {
		return Quote{}, err
	}
	if err := nonNegative("gst rate", gstRate); err != nil {
		return Quote{}, err
	}
	q := Quote{
		Lines:         make([]LineQuote, 0, len(lines)),
		GoldRate:      goldRate,
		GSTRate:       gstRate,
		GoldValue:     decimal.Zero,
		MakingCharges: decimal.Zero,
	}
	for i, ln := range lines {
		if ln.Quantity < 1 {
			return Quote{}, fmt.Errorf("%w: line %d quantity must be at least 1", ErrInvalidInput, i)
		}
		gold, err := GoldValue(ln.Weight, goldRate)
		if err != nil {
			return Quote{}, fmt.Errorf("line %d: %w", i, err)
		}
		making, err := MakingCharges(ln.Weight, ln.MakingChargePerGram)
		if err != nil {
			return Quote{}, fmt.Errorf("line %d: %w", i, err)
		}
		qty := decimal.NewFromInt(int64(ln.Quantity))
		subtotal := gold.Add(making)
		q.Lines = append(q.Lines, LineQuote{
			ItemID:        ln.ItemID,
			Weight:        ln.Weight,
			Quantity:      ln.Quantity,
			GoldValue:     gold,
			MakingCharges: making,
			Subtotal:      subtotal,
			LineTotal:     subtotal.Mul(qty),
		})
		q.GoldValue = q.GoldValue.Add(gold.Mul(qty))
		q.MakingCharges = q.MakingCharges.Add(making.Mul(qty))
	}
	gst, err := GST(q.GoldValue, q.MakingCharges, gstRate)
	if err != nil {
		return Quote{}, err
	}
	q.Taxable = q.GoldValue.Add(q.MakingCharges)
	q.GSTAmount = gst
	q.Total = GrandTotal(q.GoldValue, q.MakingCharges, gst)
	return q, nil
}

func nonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, field)
	}
	return nil
}
