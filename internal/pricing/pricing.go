// Package pricing computes line, document and margin totals shared by
// bills, invoices and quotes. All functions are pure: callers validate
// input at the form boundary and pass already-typed values.
package pricing

import "math"

// LineKind discriminates arithmetic rows from layout-only rows.
type LineKind string

const (
	// KindItem is a billable row carrying quantity and unit price.
	KindItem LineKind = "item"
	// KindText is a free-text row, excluded from every sum.
	KindText LineKind = "text"
	// KindSection is a section header row, excluded from every sum.
	KindSection LineKind = "section"
)

// DiscountKind enumerates the discount variants.
type DiscountKind int

const (
	DiscountNone DiscountKind = iota
	DiscountByPercent
	DiscountByAmount
)

// Discount is a tagged variant: none, a percentage of the gross line
// amount, or an absolute amount. Using a single variant rules out the
// percent/amount fields disagreeing with each other.
type Discount struct {
	Kind  DiscountKind
	Value float64
}

// NoDiscount returns the zero discount.
func NoDiscount() Discount { return Discount{} }

// DiscountPercent returns a percentage discount (0-100).
func DiscountPercent(p float64) Discount {
	return Discount{Kind: DiscountByPercent, Value: p}
}

// DiscountAmount returns an absolute discount.
func DiscountAmount(a float64) Discount {
	return Discount{Kind: DiscountByAmount, Value: a}
}

// DiscountFromFields maps the legacy dual-field representation onto the
// variant. An amount strictly greater than zero wins over a percent;
// otherwise a percent strictly greater than zero applies.
func DiscountFromFields(percent, amount float64) Discount {
	if amount > 0 {
		return DiscountAmount(amount)
	}
	if percent > 0 {
		return DiscountPercent(percent)
	}
	return NoDiscount()
}

// LineItem is one row of a bill, invoice or quote.
type LineItem struct {
	Description string
	Kind        LineKind
	Quantity    float64
	UnitPrice   float64
	// TaxRate is a percentage, e.g. 20 or 5.5.
	TaxRate  float64
	Discount Discount
	// PurchasePrice is the per-unit cost basis. Nil means the cost is
	// unknown and the line is treated as full margin.
	PurchasePrice *float64
}

// VATLine is the taxable base and tax collected for one distinct rate.
type VATLine struct {
	Rate float64
	Base float64
	VAT  float64
}

// Totals aggregates a document's lines. Values are kept at full float64
// precision; rounding happens once at the display or export layer so
// summed figures cannot drift from their parts.
type Totals struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
	// VATBreakdown holds one entry per distinct rate, in first-encounter
	// order of the input lines.
	VATBreakdown []VATLine
}

// Margins aggregates cost basis against sale amounts.
type Margins struct {
	TotalCost   float64
	TotalSale   float64
	TotalMargin float64
	// MarginPercent is rounded to the nearest integer value. It is the
	// only rounded figure: the currency totals above stay full precision.
	MarginPercent float64
}

// LineTotal returns the tax-exclusive, post-discount amount of a single
// line. Non-item rows always return 0. Negative results pass through
// unchanged: documents may carry negative adjustment lines.
func LineTotal(l LineItem) float64 {
	if l.Kind != KindItem {
		return 0
	}
	base := l.Quantity * l.UnitPrice
	switch l.Discount.Kind {
	case DiscountByAmount:
		return base - l.Discount.Value
	case DiscountByPercent:
		return base * (1 - l.Discount.Value/100)
	default:
		return base
	}
}

// CalculateTotals folds lines into subtotal, tax and total with a per-rate
// VAT breakdown. It iterates the input once, left to right, so the
// caller's line order fixes the float summation order.
func CalculateTotals(lines []LineItem) Totals {
	var t Totals
	rateIdx := make(map[float64]int, 4)
	for _, l := range lines {
		net := LineTotal(l)
		if l.Kind != KindItem {
			continue
		}
		tax := net * (l.TaxRate / 100)
		t.Subtotal += net
		t.TaxAmount += tax

		i, ok := rateIdx[l.TaxRate]
		if !ok {
			i = len(t.VATBreakdown)
			rateIdx[l.TaxRate] = i
			t.VATBreakdown = append(t.VATBreakdown, VATLine{Rate: l.TaxRate})
		}
		t.VATBreakdown[i].Base += net
		t.VATBreakdown[i].VAT += tax
	}
	t.Total = t.Subtotal + t.TaxAmount
	return t
}

// CalculateMargins computes cost basis margin over item lines. A line
// without a purchase price contributes zero cost: cost unknown means the
// sale is counted as full margin, it is not an error. Authorization to
// see margin figures is the caller's concern, checked before this is
// invoked at all.
func CalculateMargins(lines []LineItem) Margins {
	var m Margins
	for _, l := range lines {
		if l.Kind != KindItem {
			continue
		}
		var cost float64
		if l.PurchasePrice != nil {
			cost = l.Quantity * *l.PurchasePrice
		}
		m.TotalCost += cost
		m.TotalSale += LineTotal(l)
	}
	m.TotalMargin = m.TotalSale - m.TotalCost
	if m.TotalSale != 0 {
		m.MarginPercent = math.Round(m.TotalMargin / m.TotalSale * 100)
	}
	return m
}
