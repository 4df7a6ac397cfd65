package invoicing

import (
	"time"

	"github.com/gescom-app/gescom/internal/pricing"
)

// InvoiceStatus enumerates sales invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice is a sales invoice issued to a client.
type Invoice struct {
	ID           int64
	Number       string
	ClientID     int64
	ClientName   string
	Currency     string
	IssueDate    time.Time
	DueAt        time.Time
	Subtotal     float64
	TaxAmount    float64
	Total        float64
	Status       InvoiceStatus
	IsOverdue    bool
	SentAt       *time.Time
	PaidAt       *time.Time
	CancelledAt  *time.Time
	CancelReason *string
	Notes        *string
	QuoteID      *int64
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvoiceLine is one row of an invoice. PurchasePrice carries the per-unit
// cost basis used for margin reporting; nil means the cost is unknown.
type InvoiceLine struct {
	ID              int64
	InvoiceID       int64
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
func (l InvoiceLine) PricingItem() pricing.LineItem {
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

// Payment is an amount received against one invoice.
type Payment struct {
	ID         int64
	InvoiceID  int64
	Amount     float64
	Method     string
	Reference  *string
	PaidAt     time.Time
	RecordedBy int64
	CreatedAt  time.Time
}

// InvoiceWithDetails includes the invoice with its lines, VAT breakdown
// and payment state.
type InvoiceWithDetails struct {
	Invoice
	Lines        []InvoiceLine     `json:"lines"`
	VATBreakdown []pricing.VATLine `json:"vat_breakdown"`
	Payments     []Payment         `json:"payments"`
	PaidAmount   float64           `json:"paid_amount"`
	Balance      float64           `json:"balance"`
}
