package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func item(qty, price, rate float64) LineItem {
	return LineItem{Kind: KindItem, Quantity: qty, UnitPrice: price, TaxRate: rate}
}

func TestLineTotalNonItemKindsAreZero(t *testing.T) {
	for _, kind := range []LineKind{KindText, KindSection} {
		l := LineItem{Kind: kind, Quantity: 5, UnitPrice: 99, TaxRate: 20}
		require.Zero(t, LineTotal(l), "kind %s must not contribute", kind)
	}
}

func TestLineTotalDiscountEquivalence(t *testing.T) {
	byPercent := LineItem{Kind: KindItem, Quantity: 2, UnitPrice: 100, Discount: DiscountPercent(10)}
	byAmount := LineItem{Kind: KindItem, Quantity: 2, UnitPrice: 100, Discount: DiscountAmount(20)}

	require.InDelta(t, 180, LineTotal(byPercent), 1e-9)
	require.InDelta(t, 180, LineTotal(byAmount), 1e-9)
}

func TestLineTotalNegativeAdjustmentPassesThrough(t *testing.T) {
	credit := LineItem{Kind: KindItem, Quantity: 1, UnitPrice: -50}
	require.Equal(t, -50.0, LineTotal(credit))

	overDiscounted := LineItem{Kind: KindItem, Quantity: 1, UnitPrice: 30, Discount: DiscountAmount(40)}
	require.Equal(t, -10.0, LineTotal(overDiscounted))
}

func TestDiscountFromFieldsAmountWins(t *testing.T) {
	require.Equal(t, DiscountAmount(15), DiscountFromFields(10, 15))
	require.Equal(t, DiscountPercent(10), DiscountFromFields(10, 0))
	require.Equal(t, NoDiscount(), DiscountFromFields(0, 0))
}

func TestCalculateTotalsEmpty(t *testing.T) {
	got := CalculateTotals(nil)
	require.Zero(t, got.Subtotal)
	require.Zero(t, got.TaxAmount)
	require.Zero(t, got.Total)
	require.Empty(t, got.VATBreakdown)
}

func TestCalculateTotalsSingleLineNoTax(t *testing.T) {
	got := CalculateTotals([]LineItem{item(3, 10, 0)})
	require.Equal(t, 30.0, got.Subtotal)
	require.Zero(t, got.TaxAmount)
	require.Equal(t, 30.0, got.Total)
	require.Len(t, got.VATBreakdown, 1)
	require.Equal(t, VATLine{Rate: 0, Base: 30, VAT: 0}, got.VATBreakdown[0])
}

func TestCalculateTotalsGroupsByRate(t *testing.T) {
	lines := []LineItem{
		item(1, 100, 20),
		item(2, 10, 5.5),
		item(3, 50, 20),
	}
	got := CalculateTotals(lines)

	require.Len(t, got.VATBreakdown, 2)
	require.Equal(t, 20.0, got.VATBreakdown[0].Rate)
	require.InDelta(t, 250, got.VATBreakdown[0].Base, 1e-9)
	require.InDelta(t, 50, got.VATBreakdown[0].VAT, 1e-9)
	require.Equal(t, 5.5, got.VATBreakdown[1].Rate)
	require.InDelta(t, 20, got.VATBreakdown[1].Base, 1e-9)
	require.InDelta(t, 1.1, got.VATBreakdown[1].VAT, 1e-9)

	var vatSum float64
	for _, v := range got.VATBreakdown {
		vatSum += v.VAT
	}
	require.InDelta(t, got.TaxAmount, vatSum, 1e-9)
	require.InDelta(t, got.Subtotal+got.TaxAmount, got.Total, 1e-9)
}

func TestCalculateTotalsSkipsLayoutRows(t *testing.T) {
	lines := []LineItem{
		{Kind: KindSection, Description: "Prestations", Quantity: 9, UnitPrice: 9, TaxRate: 20},
		item(1, 100, 20),
		{Kind: KindText, Description: "Livraison incluse"},
	}
	got := CalculateTotals(lines)
	require.Equal(t, 100.0, got.Subtotal)
	require.Len(t, got.VATBreakdown, 1)
	require.Equal(t, 100.0, got.VATBreakdown[0].Base)
}

func TestCalculateTotalsDeterministic(t *testing.T) {
	lines := []LineItem{
		item(1.5, 33.33, 20),
		item(7, 0.1, 5.5),
		{Kind: KindItem, Quantity: 2, UnitPrice: 100, TaxRate: 20, Discount: DiscountPercent(12.5)},
	}
	first := CalculateTotals(lines)
	second := CalculateTotals(lines)
	require.Equal(t, first, second)
}

func TestCalculateTotalsOrderInsensitiveWithinEpsilon(t *testing.T) {
	lines := []LineItem{
		item(1.1, 9.99, 20),
		item(3, 0.07, 5.5),
		item(2.5, 41.2, 20),
	}
	reversed := []LineItem{lines[2], lines[1], lines[0]}

	a := CalculateTotals(lines)
	b := CalculateTotals(reversed)
	require.InDelta(t, a.Subtotal, b.Subtotal, 1e-9)
	require.InDelta(t, a.TaxAmount, b.TaxAmount, 1e-9)
	require.InDelta(t, a.Total, b.Total, 1e-9)
}

func TestCalculateMargins(t *testing.T) {
	cost := 30.0
	lines := []LineItem{
		{Kind: KindItem, Quantity: 2, UnitPrice: 50, PurchasePrice: &cost},
		{Kind: KindSection, Description: "ignored"},
	}
	got := CalculateMargins(lines)
	require.Equal(t, 60.0, got.TotalCost)
	require.Equal(t, 100.0, got.TotalSale)
	require.Equal(t, 40.0, got.TotalMargin)
	require.Equal(t, 40.0, got.MarginPercent)
}

func TestCalculateMarginsUnknownCostIsFullMargin(t *testing.T) {
	got := CalculateMargins([]LineItem{{Kind: KindItem, Quantity: 1, UnitPrice: 50}})
	require.Zero(t, got.TotalCost)
	require.Equal(t, 50.0, got.TotalSale)
	require.Equal(t, 50.0, got.TotalMargin)
	require.Equal(t, 100.0, got.MarginPercent)
}

func TestCalculateMarginsZeroSale(t *testing.T) {
	got := CalculateMargins(nil)
	require.Zero(t, got.MarginPercent)
}

func TestCalculateMarginsPercentIsRounded(t *testing.T) {
	cost := 66.6
	got := CalculateMargins([]LineItem{{Kind: KindItem, Quantity: 1, UnitPrice: 100, PurchasePrice: &cost}})
	// 33.4 / 100 rounds to 33, while the currency figures stay unrounded.
	require.Equal(t, 33.0, got.MarginPercent)
	require.InDelta(t, 33.4, got.TotalMargin, 1e-9)
}
