package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var frPrinter = message.NewPrinter(language.French)

// FormatEUR renders an amount in the French convention, e.g. "1 234,56 €".
// Display-only: formatted strings never feed back into calculations.
func FormatEUR(amount float64) string {
	return frPrinter.Sprintf("%v €", number.Decimal(amount,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatRate renders a tax rate for VAT summaries, e.g. "5,5 %".
// Trailing zero decimals are dropped so 20 renders as "20 %".
func FormatRate(rate float64) string {
	return frPrinter.Sprintf("%v %%", number.Decimal(rate,
		number.MaxFractionDigits(2)))
}
