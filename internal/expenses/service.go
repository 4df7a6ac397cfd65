package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStatus = errors.New("invalid status for operation")
	ErrBadAmounts    = errors.New("amounts do not add up")
)

// amountTolerance absorbs rounding residue when checking HT + VAT = TTC.
const amountTolerance = 0.01

// Service wraps expense business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Expense, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListExpensesRequest) ([]Expense, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func checkAmounts(ht, vat, ttc float64) error {
	if ht == 0 && vat == 0 {
		// Entered from the TTC alone; breakdown comes later.
		return nil
	}
	if diff := ht + vat - ttc; diff > amountTolerance || diff < -amountTolerance {
		return fmt.Errorf("%w: %.2f + %.2f != %.2f", ErrBadAmounts, ht, vat, ttc)
	}
	return nil
}

// Create records an expense draft.
func (s *Service) Create(ctx context.Context, req CreateExpenseRequest, createdBy int64) (*Expense, error) {
	if err := checkAmounts(req.AmountHT, req.VATAmount, req.TotalTTC); err != nil {
		return nil, err
	}
	e := Expense{
		ExpenseDate: req.ExpenseDate,
		Merchant:    req.Merchant,
		Category:    req.Category,
		AmountHT:    req.AmountHT,
		VATRate:     req.VATRate,
		VATAmount:   req.VATAmount,
		TotalTTC:    req.TotalTTC,
		ReceiptRef:  req.ReceiptRef,
		Status:      ExpenseStatusDraft,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// CreateDraft stores an already-built draft, used by the receipt parsing
// worker.
func (s *Service) CreateDraft(ctx context.Context, e Expense) (*Expense, error) {
	e.Status = ExpenseStatusDraft
	if e.Category == "" {
		e.Category = CategoryOther
	}
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = time.Now()
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create expense draft: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update edits a draft expense.
func (s *Service) Update(ctx context.Context, id int64, req UpdateExpenseRequest) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != ExpenseStatusDraft {
		return nil, fmt.Errorf("%w: only draft expenses can be edited", ErrInvalidStatus)
	}

	ht, vat, ttc := e.AmountHT, e.VATAmount, e.TotalTTC
	updates := make(map[string]interface{})
	if req.ExpenseDate != nil {
		updates["expense_date"] = *req.ExpenseDate
	}
	if req.Merchant != nil {
		updates["merchant"] = *req.Merchant
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.AmountHT != nil {
		updates["amount_ht"] = *req.AmountHT
		ht = *req.AmountHT
	}
	if req.VATRate != nil {
		updates["vat_rate"] = *req.VATRate
	}
	if req.VATAmount != nil {
		updates["vat_amount"] = *req.VATAmount
		vat = *req.VATAmount
	}
	if req.TotalTTC != nil {
		updates["total_ttc"] = *req.TotalTTC
		ttc = *req.TotalTTC
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if err := checkAmounts(ht, vat, ttc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Submit moves a draft expense into review.
func (s *Service) Submit(ctx context.Context, id int64) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != ExpenseStatusDraft {
		return nil, fmt.Errorf("%w: only draft expenses can be submitted", ErrInvalidStatus)
	}
	if err := checkAmounts(e.AmountHT, e.VATAmount, e.TotalTTC); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{"status": ExpenseStatusSubmitted}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Approve accepts a submitted expense.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy int64) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != ExpenseStatusSubmitted {
		return nil, fmt.Errorf("%w: only submitted expenses can be approved", ErrInvalidStatus)
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{
		"status":      ExpenseStatusApproved,
		"approved_at": time.Now(),
		"approved_by": approvedBy,
	}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Reject sends a submitted expense back with a reason.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != ExpenseStatusSubmitted {
		return nil, fmt.Errorf("%w: only submitted expenses can be rejected", ErrInvalidStatus)
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{
		"status":        ExpenseStatusRejected,
		"reject_reason": reason,
	}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// MonthlySummary aggregates a month's expenses per category.
func (s *Service) MonthlySummary(ctx context.Context, year, month int) (*MonthlySummary, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	return s.repo.MonthlySummary(ctx, year, month)
}
