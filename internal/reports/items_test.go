package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopSellingRanksByQuantity(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ring := &ItemRef{Name: "Ring", SKU: "R1", MetalType: MetalGold}
	chain := &ItemRef{Name: "Chain", SKU: "C1", MetalType: MetalGold}
	sales := []LineSale{
		{InvoiceID: "i1", ItemID: "ring", Quantity: 1, Price: d("28000"), SoldAt: at, Item: ring},
		{InvoiceID: "i2", ItemID: "chain", Quantity: 3, Price: d("1000"), SoldAt: at, Item: chain},
		{InvoiceID: "i3", ItemID: "ring", Quantity: 1, Price: d("28000"), SoldAt: at, Item: ring},
		{InvoiceID: "i4", ItemID: "gone", Quantity: 2, Price: d("500"), SoldAt: at},
	}
	top := TopSelling(sales, 0)
	require.Len(t, top, 3)
	require.Equal(t, "chain", top[0].ItemID)
	requireDecimal(t, "3000", top[0].TotalRevenue)

	require.Equal(t, "ring", top[1].ItemID)
	require.Equal(t, 2, top[1].TimesSold)
	requireDecimal(t, "56000", top[1].TotalRevenue)

	require.Equal(t, "gone", top[2].ItemID)
	require.Equal(t, unknownLabel, top[2].ItemName)
	require.Equal(t, unknownSKU, top[2].SKU)
	require.Equal(t, unknownLabel, top[2].MetalType)

	require.Len(t, TopSelling(sales, 1), 1)
}

func TestSoldItemsFiltersAndOrdersByRecency(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	gold := &ItemRef{Name: "Ring", SKU: "R1", MetalType: MetalGold}
	silver := &ItemRef{Name: "Anklet", SKU: "A1", MetalType: MetalSilver}
	sales := []LineSale{
		{ItemID: "ring", CustomerID: strPtr("c1"), Quantity: 1, Price: d("100"), SoldAt: base, Item: gold},
		{ItemID: "anklet", CustomerID: strPtr("c2"), Quantity: 1, Price: d("50"), SoldAt: base.AddDate(0, 0, 2), Item: silver},
		{ItemID: "ring", CustomerID: strPtr("c2"), Quantity: 2, Price: d("100"), SoldAt: base.AddDate(0, 0, 5), Item: gold},
		{ItemID: "anklet", Quantity: 1, Price: d("50"), SoldAt: base.AddDate(0, 0, 1), Item: silver},
	}

	all := SoldItems(sales, SoldFilter{})
	require.Len(t, all, 2)
	require.Equal(t, "ring", all[0].ItemID)
	require.True(t, all[0].LastSoldDate.Equal(base.AddDate(0, 0, 5)))
	require.Equal(t, 3, all[0].QuantitySold)

	byCustomer := SoldItems(sales, SoldFilter{CustomerID: "c1"})
	require.Len(t, byCustomer, 1)
	require.Equal(t, 1, byCustomer[0].QuantitySold)

	byMetal := SoldItems(sales, SoldFilter{MetalType: MetalSilver})
	require.Len(t, byMetal, 1)
	require.Equal(t, "anklet", byMetal[0].ItemID)
	require.Equal(t, 2, byMetal[0].TimesSold)

	require.Empty(t, SoldItems(sales, SoldFilter{CustomerID: "c2", MetalType: MetalDiamond}))
	require.NotNil(t, SoldItems(nil, SoldFilter{}))
}

func TestProfitMarginEstimatesCost(t *testing.T) {
	invoices := []Invoice{
		{ID: "i1", TotalAmount: d("10300")},
		{ID: "i2", TotalAmount: d("5150")},
	}
	sales := []LineSale{
		{InvoiceID: "i1", ItemID: "ring", Quantity: 1, Price: d("10000"), Item: &ItemRef{MetalType: MetalGold}},
		{InvoiceID: "i2", ItemID: "anklet", Quantity: 2, Price: d("2500"), Item: &ItemRef{MetalType: MetalSilver}},
		{InvoiceID: "other", ItemID: "x", Quantity: 1, Price: d("99999"), Item: &ItemRef{MetalType: MetalGold}},
	}
	report := ProfitMargin(invoices, sales)
	requireDecimal(t, "15450", report.TotalRevenue)
	requireDecimal(t, "12000", report.TotalCost)
	requireDecimal(t, "3450", report.TotalProfit)
	require.InDelta(t, 3450.0/15450.0*100, report.ProfitMargin, 1e-9)

	require.Len(t, report.ByMetalType, 2)
	require.Equal(t, MetalGold, report.ByMetalType[0].MetalType)
	requireDecimal(t, "8000", report.ByMetalType[0].Cost)
	requireDecimal(t, "2000", report.ByMetalType[0].Profit)
	require.InDelta(t, 20.0, report.ByMetalType[0].Margin, 1e-9)
	require.Equal(t, MetalSilver, report.ByMetalType[1].MetalType)
	requireDecimal(t, "5000", report.ByMetalType[1].Revenue)
}

func TestProfitMarginEmpty(t *testing.T) {
	report := ProfitMargin(nil, nil)
	require.True(t, report.TotalRevenue.IsZero())
	require.Zero(t, report.ProfitMargin)
	require.NotNil(t, report.ByMetalType)
	require.Empty(t, report.ByMetalType)
}

func TestProfitMarginUnknownMetal(t *testing.T) {
	report := ProfitMargin(
		[]Invoice{{ID: "i1", TotalAmount: d("100")}},
		[]LineSale{{InvoiceID: "i1", ItemID: "gone", Quantity: 1, Price: d("100")}},
	)
	require.Len(t, report.ByMetalType, 1)
	require.Equal(t, unknownLabel, report.ByMetalType[0].MetalType)
}
