package quotes

import "time"

// QuoteLineReq is one line of a quote create/update request.
type QuoteLineReq struct {
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

// CreateQuoteRequest drafts a new quote.
type CreateQuoteRequest struct {
	ClientID   int64          `json:"client_id" validate:"required,gt=0"`
	Currency   string         `json:"currency,omitempty" validate:"omitempty,len=3"`
	IssueDate  time.Time      `json:"issue_date" validate:"required"`
	ValidUntil time.Time      `json:"valid_until,omitempty"`
	Notes      *string        `json:"notes,omitempty"`
	Lines      []QuoteLineReq `json:"lines" validate:"required,min=1,dive"`
}

// UpdateQuoteRequest edits a draft quote.
type UpdateQuoteRequest struct {
	IssueDate  *time.Time      `json:"issue_date,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	Lines      *[]QuoteLineReq `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// ListQuotesRequest filters the quote listing.
type ListQuotesRequest struct {
	ClientID   *int64       `json:"client_id,omitempty"`
	Status     *QuoteStatus `json:"status,omitempty"`
	IssuedFrom *time.Time   `json:"issued_from,omitempty"`
	IssuedTo   *time.Time   `json:"issued_to,omitempty"`
	Limit      int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int          `json:"offset" validate:"gte=0"`
}
