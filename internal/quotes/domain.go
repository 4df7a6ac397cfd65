package quotes

import (
	"time"

	"github.com/gescom-app/gescom/internal/pricing"
)

// QuoteStatus enumerates quote statuses.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRefused  QuoteStatus = "REFUSED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

// Quote is a commercial proposal sent to a client before invoicing.
type Quote struct {
	ID           int64
	Number       string
	ClientID     int64
	ClientName   string
	Currency     string
	IssueDate    time.Time
	ValidUntil   time.Time
	Subtotal     float64
	TaxAmount    float64
	Total        float64
	Status       QuoteStatus
	SentAt       *time.Time
	AcceptedAt   *time.Time
	RefusedAt    *time.Time
	RefuseReason *string
	InvoiceID    *int64
	Notes        *string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QuoteLine is one row of a quote. PurchasePrice travels with the line so
// the invoice created on conversion keeps the cost basis.
type QuoteLine struct {
	ID              int64
	QuoteID         int64
	Kind            pricing.LineKind
	Description     string
	Quantity        float64
	UnitPrice       float64
	TaxRate         float64
	DiscountPercent float64
	DiscountAmount  float64
	PurchasePrice   *float64
	LineOrder       int
	CreatedAt       time.Time
}

// PricingItem maps the persisted row onto the calculator's input.
func (l QuoteLine) PricingItem() pricing.LineItem {
	return pricing.LineItem{
		Description:   l.Description,
		Kind:          l.Kind,
		Quantity:      l.Quantity,
		UnitPrice:     l.UnitPrice,
		TaxRate:       l.TaxRate,
		Discount:      pricing.DiscountFromFields(l.DiscountPercent, l.DiscountAmount),
		PurchasePrice: l.PurchasePrice,
	}
}

// QuoteWithDetails includes the quote with its lines and VAT breakdown.
type QuoteWithDetails struct {
	Quote
	Lines        []QuoteLine       `json:"lines"`
	VATBreakdown []pricing.VATLine `json:"vat_breakdown"`
}
