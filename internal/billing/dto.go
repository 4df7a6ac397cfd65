package billing

import "time"

// CreateSupplierRequest registers a supplier.
type CreateSupplierRequest struct {
	Name             string  `json:"name" validate:"required,max=200"`
	SIRET            *string `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"`
	IBAN             *string `json:"iban,omitempty" validate:"omitempty,max=34"`
	PaymentTermsDays int     `json:"payment_terms_days" validate:"gte=0,lte=120"`
}

// BillLineReq is one line of a bill create/update request.
type BillLineReq struct {
	Kind            string  `json:"kind" validate:"required,oneof=item text section"`
	Description     string  `json:"description" validate:"max=500"`
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	UnitPrice       float64 `json:"unit_price"`
	TaxRate         float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  float64 `json:"discount_amount" validate:"gte=0"`
	LineOrder       int     `json:"line_order" validate:"gte=0"`
}

// CreateBillRequest records a received purchase bill.
type CreateBillRequest struct {
	SupplierID int64         `json:"supplier_id" validate:"required,gt=0"`
	Number     string        `json:"number,omitempty" validate:"omitempty,max=50"`
	Currency   string        `json:"currency,omitempty" validate:"omitempty,len=3"`
	BillDate   time.Time     `json:"bill_date" validate:"required"`
	DueAt      time.Time     `json:"due_at,omitempty"`
	Notes      *string       `json:"notes,omitempty"`
	Lines      []BillLineReq `json:"lines" validate:"required,min=1,dive"`
}

// UpdateBillRequest replaces a draft bill's editable fields.
type UpdateBillRequest struct {
	BillDate *time.Time     `json:"bill_date,omitempty"`
	DueAt    *time.Time     `json:"due_at,omitempty"`
	Notes    *string        `json:"notes,omitempty"`
	Lines    *[]BillLineReq `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// ListBillsRequest filters the bill listing.
type ListBillsRequest struct {
	SupplierID *int64      `json:"supplier_id,omitempty"`
	Status     *BillStatus `json:"status,omitempty"`
	DueFrom    *time.Time  `json:"due_from,omitempty"`
	DueTo      *time.Time  `json:"due_to,omitempty"`
	Limit      int         `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int         `json:"offset" validate:"gte=0"`
}
