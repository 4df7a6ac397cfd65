package expenses

import "time"

// ExpenseStatus enumerates expense statuses.
type ExpenseStatus string

const (
	ExpenseStatusDraft     ExpenseStatus = "DRAFT"
	ExpenseStatusSubmitted ExpenseStatus = "SUBMITTED"
	ExpenseStatusApproved  ExpenseStatus = "APPROVED"
	ExpenseStatusRejected  ExpenseStatus = "REJECTED"
)

// Category enumerates expense categories.
type Category string

const (
	CategoryTravel   Category = "travel"
	CategoryMeals    Category = "meals"
	CategorySupplies Category = "supplies"
	CategoryServices Category = "services"
	CategoryOther    Category = "other"
)

// Expense is a business expense, entered by hand or prefilled from a
// parsed receipt.
type Expense struct {
	ID           int64
	ExpenseDate  time.Time
	Merchant     string
	Category     Category
	AmountHT     float64
	VATRate      float64
	VATAmount    float64
	TotalTTC     float64
	ReceiptRef   *string
	Status       ExpenseStatus
	Notes        *string
	ApprovedAt   *time.Time
	ApprovedBy   *int64
	RejectReason *string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CategorySummary is one category's aggregate for a month.
type CategorySummary struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	TotalHT  float64  `json:"total_ht"`
	TotalTTC float64  `json:"total_ttc"`
}

// MonthlySummary aggregates a month's approved and submitted expenses.
type MonthlySummary struct {
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	TotalHT    float64           `json:"total_ht"`
	TotalTTC   float64           `json:"total_ttc"`
	Categories []CategorySummary `json:"categories"`
}
