package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TroyOunceGrams is the number of grams in one troy ounce.
var TroyOunceGrams = decimal.RequireFromString("31.1035")

// Carats lists the purities quoted by the rate feed, purest first.
var Carats = []int{24, 22, 18, 14, 10}

var twentyFour = decimal.NewFromInt(24)

// RateForCarat scales a 24K per-gram rate to the given carat purity.
func RateForCarat(rate24K decimal.Decimal, carat int) decimal.Decimal {
	return rate24K.Mul(decimal.NewFromInt(int64(carat))).Div(twentyFour)
}

// PerGramFromOunce converts a USD per troy ounce quote into INR per gram.
func PerGramFromOunce(usdPerOunce, usdToINR decimal.Decimal) decimal.Decimal {
	return usdPerOunce.Mul(usdToINR).Div(TroyOunceGrams)
}

// InvoiceNumber renders the display identifier for the seq-th invoice of a store.
func InvoiceNumber(seq int) string {
	return fmt.Sprintf("INV-%03d", seq)
}
