package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gescom-app/gescom/internal/pricing"
)

var (
	ErrInvalidStatus = errors.New("invalid status for operation")
	ErrNoLines       = errors.New("at least one line is required")
)

// Service wraps purchase bill business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, activeOnly)
}

func (s *Service) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*Supplier, error) {
	sup := Supplier{
		Name:             req.Name,
		SIRET:            req.SIRET,
		Email:            req.Email,
		Phone:            req.Phone,
		IBAN:             req.IBAN,
		PaymentTermsDays: req.PaymentTermsDays,
		IsActive:         true,
	}
	if sup.PaymentTermsDays == 0 {
		sup.PaymentTermsDays = 30
	}
	id, err := s.repo.CreateSupplier(ctx, sup)
	if err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	sup.ID = id
	return &sup, nil
}

func linesFromReqs(reqs []BillLineReq) []BillLine {
	out := make([]BillLine, 0, len(reqs))
	for i, lr := range reqs {
		order := lr.LineOrder
		if order == 0 {
			order = i
		}
		out = append(out, BillLine{
			Kind:            pricing.LineKind(lr.Kind),
			Description:     lr.Description,
			Quantity:        lr.Quantity,
			UnitPrice:       lr.UnitPrice,
			TaxRate:         lr.TaxRate,
			DiscountPercent: lr.DiscountPercent,
			DiscountAmount:  lr.DiscountAmount,
			LineOrder:       order,
		})
	}
	return out
}

func pricingItems(lines []BillLine) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.PricingItem())
	}
	return items
}

// CreateBill records a received bill, computing totals from its lines.
func (s *Service) CreateBill(ctx context.Context, req CreateBillRequest, createdBy int64) (*Bill, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoLines
	}
	supplier, err := s.repo.GetSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}

	lines := linesFromReqs(req.Lines)
	totals := pricing.CalculateTotals(pricingItems(lines))

	bill := Bill{
		Number:     req.Number,
		SupplierID: supplier.ID,
		Currency:   req.Currency,
		BillDate:   req.BillDate,
		DueAt:      req.DueAt,
		Subtotal:   totals.Subtotal,
		TaxAmount:  totals.TaxAmount,
		Total:      totals.Total,
		Status:     BillStatusDraft,
		Notes:      req.Notes,
		CreatedBy:  createdBy,
	}
	if bill.Currency == "" {
		bill.Currency = "EUR"
	}
	if bill.DueAt.IsZero() {
		bill.DueAt = req.BillDate.AddDate(0, 0, supplier.PaymentTermsDays)
	}

	var billID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if bill.Number == "" {
			num, err := repo.GenerateBillNumber(ctx, bill.BillDate.Year())
			if err != nil {
				return err
			}
			bill.Number = num
		}
		id, err := repo.CreateBill(ctx, bill)
		if err != nil {
			return err
		}
		billID = id
		for _, l := range lines {
			if err := repo.CreateBillLine(ctx, id, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetBill(ctx, billID)
}

// UpdateBill edits a draft bill, recomputing totals when lines change.
func (s *Service) UpdateBill(ctx context.Context, id int64, req UpdateBillRequest) (*Bill, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != BillStatusDraft {
		return nil, fmt.Errorf("%w: only draft bills can be edited", ErrInvalidStatus)
	}

	updates := make(map[string]interface{})
	if req.BillDate != nil {
		updates["bill_date"] = *req.BillDate
	}
	if req.DueAt != nil {
		updates["due_at"] = *req.DueAt
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if req.Lines != nil {
			lines := linesFromReqs(*req.Lines)
			totals := pricing.CalculateTotals(pricingItems(lines))
			updates["subtotal"] = totals.Subtotal
			updates["tax_amount"] = totals.TaxAmount
			updates["total"] = totals.Total

			if err := repo.DeleteBillLines(ctx, id); err != nil {
				return err
			}
			for _, l := range lines {
				if err := repo.CreateBillLine(ctx, id, l); err != nil {
					return err
				}
			}
		}
		return repo.UpdateBill(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetBill(ctx, id)
}

// Schedule marks a draft bill as scheduled for payment.
func (s *Service) Schedule(ctx context.Context, id int64) (*Bill, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != BillStatusDraft {
		return nil, fmt.Errorf("%w: only draft bills can be scheduled", ErrInvalidStatus)
	}
	if err := s.repo.UpdateBill(ctx, id, map[string]interface{}{"status": BillStatusScheduled}); err != nil {
		return nil, err
	}
	return s.repo.GetBill(ctx, id)
}

// MarkPaid records the payment of a scheduled bill.
func (s *Service) MarkPaid(ctx context.Context, id int64, paidBy int64) (*Bill, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != BillStatusScheduled && bill.Status != BillStatusDraft {
		return nil, fmt.Errorf("%w: bill is %s", ErrInvalidStatus, bill.Status)
	}
	if err := s.repo.UpdateBill(ctx, id, map[string]interface{}{
		"status":  BillStatusPaid,
		"paid_at": time.Now(),
		"paid_by": paidBy,
	}); err != nil {
		return nil, err
	}
	return s.repo.GetBill(ctx, id)
}

// Void cancels a bill that was recorded in error.
func (s *Service) Void(ctx context.Context, id int64, voidedBy int64, reason string) (*Bill, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == BillStatusPaid || bill.Status == BillStatusVoid {
		return nil, fmt.Errorf("%w: bill is %s", ErrInvalidStatus, bill.Status)
	}
	if err := s.repo.UpdateBill(ctx, id, map[string]interface{}{
		"status":      BillStatusVoid,
		"voided_at":   time.Now(),
		"voided_by":   voidedBy,
		"void_reason": reason,
	}); err != nil {
		return nil, err
	}
	return s.repo.GetBill(ctx, id)
}

// GetBillWithDetails loads the bill, its lines and the VAT breakdown
// recomputed from the lines so exports match stored totals exactly.
func (s *Service) GetBillWithDetails(ctx context.Context, id int64) (*BillWithDetails, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListBillLines(ctx, id)
	if err != nil {
		return nil, err
	}
	totals := pricing.CalculateTotals(pricingItems(lines))
	return &BillWithDetails{
		Bill:         *bill,
		Lines:        lines,
		VATBreakdown: totals.VATBreakdown,
	}, nil
}

func (s *Service) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.ListBills(ctx, req)
}
