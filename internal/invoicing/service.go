package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gescom-app/gescom/internal/crm/clients"
	"github.com/gescom-app/gescom/internal/pricing"
)

var (
	ErrInvalidStatus = errors.New("invalid status for operation")
	ErrNoLines       = errors.New("at least one line is required")
	ErrOverpayment   = errors.New("payment exceeds remaining balance")
)

// paymentTolerance absorbs sub-cent float residue when deciding whether an
// invoice is settled.
const paymentTolerance = 0.005

// ClientDirectory resolves clients for invoicing.
type ClientDirectory interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// Service wraps sales invoice business rules.
type Service struct {
	repo       Repository
	clients    ClientDirectory
	invalidate func(context.Context) error
}

// NewService constructs a Service.
func NewService(repo Repository, dir ClientDirectory) *Service {
	return &Service{repo: repo, clients: dir}
}

// OnMutation registers a callback run after any mutation that changes
// revenue figures, used to bump the analytics cache.
func (s *Service) OnMutation(fn func(context.Context) error) {
	s.invalidate = fn
}

func (s *Service) bumpCaches(ctx context.Context) {
	if s.invalidate != nil {
		_ = s.invalidate(ctx)
	}
}

func linesFromReqs(reqs []InvoiceLineReq) []InvoiceLine {
	out := make([]InvoiceLine, 0, len(reqs))
	for i, lr := range reqs {
		order := lr.LineOrder
		if order == 0 {
			order = i
		}
		out = append(out, InvoiceLine{
			Kind:            pricing.LineKind(lr.Kind),
			Description:     lr.Description,
			Quantity:        lr.Quantity,
			UnitPrice:       lr.UnitPrice,
			TaxRate:         lr.TaxRate,
			DiscountPercent: lr.DiscountPercent,
			DiscountAmount:  lr.DiscountAmount,
			PurchasePrice:   lr.PurchasePrice,
			LineOrder:       order,
		})
	}
	return out
}

func pricingItems(lines []InvoiceLine) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.PricingItem())
	}
	return items
}

// CreateInvoice issues a draft invoice, computing totals from its lines.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, createdBy int64) (*Invoice, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoLines
	}
	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	lines := linesFromReqs(req.Lines)
	totals := pricing.CalculateTotals(pricingItems(lines))

	inv := Invoice{
		ClientID:  client.ID,
		Currency:  req.Currency,
		IssueDate: req.IssueDate,
		DueAt:     req.DueAt,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
		Status:    InvoiceStatusDraft,
		Notes:     req.Notes,
		CreatedBy: createdBy,
	}
	if inv.Currency == "" {
		inv.Currency = "EUR"
	}
	if inv.DueAt.IsZero() {
		inv.DueAt = req.IssueDate.AddDate(0, 0, client.PaymentTermsDays)
	}

	return s.persistNew(ctx, inv, lines)
}

// QuoteData is the snapshot handed over when a quote is converted.
type QuoteData struct {
	QuoteID  int64
	ClientID int64
	Currency string
	Notes    *string
	Lines    []InvoiceLine
}

// CreateFromQuote issues a draft invoice carrying over the quote's lines.
// The quote module guards against converting the same quote twice.
func (s *Service) CreateFromQuote(ctx context.Context, data QuoteData, createdBy int64) (*Invoice, error) {
	if len(data.Lines) == 0 {
		return nil, ErrNoLines
	}
	client, err := s.clients.Get(ctx, data.ClientID)
	if err != nil {
		return nil, err
	}

	lines := make([]InvoiceLine, len(data.Lines))
	copy(lines, data.Lines)
	for i := range lines {
		lines[i].ID = 0
		lines[i].InvoiceID = 0
	}
	totals := pricing.CalculateTotals(pricingItems(lines))

	now := time.Now()
	inv := Invoice{
		ClientID:  client.ID,
		Currency:  data.Currency,
		IssueDate: now,
		DueAt:     now.AddDate(0, 0, client.PaymentTermsDays),
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
		Status:    InvoiceStatusDraft,
		Notes:     data.Notes,
		QuoteID:   &data.QuoteID,
		CreatedBy: createdBy,
	}
	if inv.Currency == "" {
		inv.Currency = "EUR"
	}

	return s.persistNew(ctx, inv, lines)
}

func (s *Service) persistNew(ctx context.Context, inv Invoice, lines []InvoiceLine) (*Invoice, error) {
	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		num, err := repo.GenerateInvoiceNumber(ctx, inv.IssueDate.Year())
		if err != nil {
			return err
		}
		inv.Number = num
		id, err := repo.CreateInvoice(ctx, inv)
		if err != nil {
			return err
		}
		invoiceID = id
		for _, l := range lines {
			if err := repo.CreateInvoiceLine(ctx, id, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bumpCaches(ctx)
	return s.repo.GetInvoice(ctx, invoiceID)
}

// UpdateInvoice edits a draft invoice, recomputing totals when lines change.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be edited", ErrInvalidStatus)
	}

	updates := make(map[string]interface{})
	if req.IssueDate != nil {
		updates["issue_date"] = *req.IssueDate
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

			if err := repo.DeleteInvoiceLines(ctx, id); err != nil {
				return err
			}
			for _, l := range lines {
				if err := repo.CreateInvoiceLine(ctx, id, l); err != nil {
					return err
				}
			}
		}
		return repo.UpdateInvoice(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetInvoice(ctx, id)
}

// Send marks a draft invoice as issued to the client.
func (s *Service) Send(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be sent", ErrInvalidStatus)
	}
	if err := s.repo.UpdateInvoice(ctx, id, map[string]interface{}{
		"status":  InvoiceStatusSent,
		"sent_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	s.bumpCaches(ctx)
	return s.repo.GetInvoice(ctx, id)
}

// Cancel voids an invoice that has received no payment.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCancelled {
		return nil, fmt.Errorf("%w: invoice is %s", ErrInvalidStatus, inv.Status)
	}
	paid, err := s.repo.SumPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	if paid > 0 {
		return nil, fmt.Errorf("%w: invoice has recorded payments", ErrInvalidStatus)
	}
	if err := s.repo.UpdateInvoice(ctx, id, map[string]interface{}{
		"status":        InvoiceStatusCancelled,
		"cancelled_at":  time.Now(),
		"cancel_reason": reason,
	}); err != nil {
		return nil, err
	}
	s.bumpCaches(ctx)
	return s.repo.GetInvoice(ctx, id)
}

// RecordPayment registers an amount received. The invoice flips to PAID
// once the cumulative payments cover the total.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, req RecordPaymentRequest, recordedBy int64) (*InvoiceWithDetails, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceStatusSent {
		return nil, fmt.Errorf("%w: payments apply to sent invoices only", ErrInvalidStatus)
	}

	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		paid, err := repo.SumPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		if req.Amount > inv.Total-paid+paymentTolerance {
			return ErrOverpayment
		}
		if _, err := repo.CreatePayment(ctx, Payment{
			InvoiceID:  invoiceID,
			Amount:     req.Amount,
			Method:     req.Method,
			Reference:  req.Reference,
			PaidAt:     paidAt,
			RecordedBy: recordedBy,
		}); err != nil {
			return err
		}
		if paid+req.Amount >= inv.Total-paymentTolerance {
			return repo.UpdateInvoice(ctx, invoiceID, map[string]interface{}{
				"status":     InvoiceStatusPaid,
				"paid_at":    paidAt,
				"is_overdue": false,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bumpCaches(ctx)
	return s.GetInvoiceWithDetails(ctx, invoiceID)
}

// GetInvoiceWithDetails loads the invoice, its lines, the VAT breakdown
// recomputed from the lines, and the payment state.
func (s *Service) GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListInvoiceLines(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	var paid float64
	for _, p := range payments {
		paid += p.Amount
	}
	totals := pricing.CalculateTotals(pricingItems(lines))
	return &InvoiceWithDetails{
		Invoice:      *inv,
		Lines:        lines,
		VATBreakdown: totals.VATBreakdown,
		Payments:     payments,
		PaidAmount:   paid,
		Balance:      inv.Total - paid,
	}, nil
}

// Margins computes the cost basis margin of one invoice. Whether the
// caller may see the figures is decided at the transport layer before
// this runs.
func (s *Service) Margins(ctx context.Context, id int64) (*pricing.Margins, error) {
	if _, err := s.repo.GetInvoice(ctx, id); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListInvoiceLines(ctx, id)
	if err != nil {
		return nil, err
	}
	m := pricing.CalculateMargins(pricingItems(lines))
	return &m, nil
}

func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.ListInvoices(ctx, req)
}

// FlagOverdue marks sent invoices past their due date. It returns the
// flagged invoices so the caller can notify about them.
func (s *Service) FlagOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, inv := range candidates {
		if err := s.repo.UpdateInvoice(ctx, inv.ID, map[string]interface{}{"is_overdue": true}); err != nil {
			return nil, err
		}
	}
	if len(candidates) > 0 {
		s.bumpCaches(ctx)
	}
	return candidates, nil
}
