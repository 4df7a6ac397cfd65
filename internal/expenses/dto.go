package expenses

import "time"

// CreateExpenseRequest records a new expense.
type CreateExpenseRequest struct {
	ExpenseDate time.Time `json:"expense_date" validate:"required"`
	Merchant    string    `json:"merchant" validate:"required,max=200"`
	Category    Category  `json:"category" validate:"required,oneof=travel meals supplies services other"`
	AmountHT    float64   `json:"amount_ht" validate:"gte=0"`
	VATRate     float64   `json:"vat_rate" validate:"gte=0,lte=100"`
	VATAmount   float64   `json:"vat_amount" validate:"gte=0"`
	TotalTTC    float64   `json:"total_ttc" validate:"required,gt=0"`
	ReceiptRef  *string   `json:"receipt_ref,omitempty" validate:"omitempty,max=100"`
	Notes       *string   `json:"notes,omitempty"`
}

// UpdateExpenseRequest edits a draft expense.
type UpdateExpenseRequest struct {
	ExpenseDate *time.Time `json:"expense_date,omitempty"`
	Merchant    *string    `json:"merchant,omitempty" validate:"omitempty,max=200"`
	Category    *Category  `json:"category,omitempty" validate:"omitempty,oneof=travel meals supplies services other"`
	AmountHT    *float64   `json:"amount_ht,omitempty" validate:"omitempty,gte=0"`
	VATRate     *float64   `json:"vat_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	VATAmount   *float64   `json:"vat_amount,omitempty" validate:"omitempty,gte=0"`
	TotalTTC    *float64   `json:"total_ttc,omitempty" validate:"omitempty,gt=0"`
	Notes       *string    `json:"notes,omitempty"`
}

// ListExpensesRequest filters the expense listing.
type ListExpensesRequest struct {
	Status   *ExpenseStatus `json:"status,omitempty"`
	Category *Category      `json:"category,omitempty"`
	DateFrom *time.Time     `json:"date_from,omitempty"`
	DateTo   *time.Time     `json:"date_to,omitempty"`
	Limit    int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int            `json:"offset" validate:"gte=0"`
}
