package billing

import (
	"time"

	"github.com/gescom-app/gescom/internal/pricing"
)

// BillStatus enumerates purchase bill statuses.
type BillStatus string

const (
	BillStatusDraft     BillStatus = "DRAFT"
	BillStatusScheduled BillStatus = "SCHEDULED"
	BillStatusPaid      BillStatus = "PAID"
	BillStatusVoid      BillStatus = "VOID"
)

// Supplier model.
type Supplier struct {
	ID               int64
	Name             string
	SIRET            *string
	Email            *string
	Phone            *string
	IBAN             *string
	PaymentTermsDays int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Bill is a purchase bill received from a supplier.
type Bill struct {
	ID           int64
	Number       string
	SupplierID   int64
	SupplierName string
	Currency     string
	BillDate     time.Time
	DueAt        time.Time
	Subtotal     float64
	TaxAmount    float64
	Total        float64
	Status       BillStatus
	PaidAt       *time.Time
	PaidBy       *int64
	VoidedAt     *time.Time
	VoidedBy     *int64
	VoidReason   *string
	Notes        *string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BillLine is one row of a bill.
type BillLine struct {
	ID              int64
	BillID          int64
	Kind            pricing.LineKind
	Description     string
	Quantity        float64
	UnitPrice       float64
	TaxRate         float64
	DiscountPercent float64
	DiscountAmount  float64
	LineOrder       int
	CreatedAt       time.Time
}

// PricingItem maps the persisted row onto the calculator's input.
func (l BillLine) PricingItem() pricing.LineItem {
	return pricing.LineItem{
		Description: l.Description,
		Kind:        l.Kind,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		TaxRate:     l.TaxRate,
		Discount:    pricing.DiscountFromFields(l.DiscountPercent, l.DiscountAmount),
	}
}

// BillWithDetails includes the bill with its lines and VAT breakdown.
type BillWithDetails struct {
	Bill
	Lines        []BillLine        `json:"lines"`
	VATBreakdown []pricing.VATLine `json:"vat_breakdown"`
}
