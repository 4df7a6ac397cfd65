package invoicing

import "time"

// InvoiceLineReq is one line of an invoice create/update request.
type InvoiceLineReq struct {
	Kind            string   `json:"kind" validate:"required,oneof=item text section"`
	Description     string   `json:"description" validate:"max=500"`
	Quantity        float64  `json:"quantity" validate:"gte=0"`
	UnitPrice       float64  `json:"unit_price"`
	TaxRate         float64  `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountPercent float64  `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  float64  `json:"discount_amount" validate:"gte=0"`
	PurchasePrice   *float64 `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	LineOrder       int      `json:"line_order" validate:"gte=0"`
}

// CreateInvoiceRequest issues a new invoice.
type CreateInvoiceRequest struct {
	ClientID  int64            `json:"client_id" validate:"required,gt=0"`
	Currency  string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	IssueDate time.Time        `json:"issue_date" validate:"required"`
	DueAt     time.Time        `json:"due_at,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	Lines     []InvoiceLineReq `json:"lines" validate:"required,min=1,dive"`
}

// UpdateInvoiceRequest edits a draft invoice.
type UpdateInvoiceRequest struct {
	IssueDate *time.Time        `json:"issue_date,omitempty"`
	DueAt     *time.Time        `json:"due_at,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	Lines     *[]InvoiceLineReq `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// ListInvoicesRequest filters the invoice listing.
type ListInvoicesRequest struct {
	ClientID   *int64         `json:"client_id,omitempty"`
	Status     *InvoiceStatus `json:"status,omitempty"`
	Overdue    *bool          `json:"overdue,omitempty"`
	IssuedFrom *time.Time     `json:"issued_from,omitempty"`
	IssuedTo   *time.Time     `json:"issued_to,omitempty"`
	Limit      int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int            `json:"offset" validate:"gte=0"`
}

// RecordPaymentRequest registers an amount received against an invoice.
type RecordPaymentRequest struct {
	Amount    float64    `json:"amount" validate:"required,gt=0"`
	Method    string     `json:"method" validate:"required,oneof=transfer card cheque cash"`
	Reference *string    `json:"reference,omitempty" validate:"omitempty,max=100"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}
