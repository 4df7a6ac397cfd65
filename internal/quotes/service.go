package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gescom-app/gescom/internal/crm/clients"
	"github.com/gescom-app/gescom/internal/invoicing"
	"github.com/gescom-app/gescom/internal/pricing"
)

var (
	ErrInvalidStatus    = errors.New("invalid status for operation")
	ErrNoLines          = errors.New("at least one line is required")
	ErrAlreadyConverted = errors.New("quote already converted to an invoice")
)

// defaultValidityDays is applied when the request carries no expiry date.
const defaultValidityDays = 30

// ClientDirectory resolves clients for quoting.
type ClientDirectory interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// InvoiceCreator issues an invoice from an accepted quote's snapshot.
type InvoiceCreator interface {
	CreateFromQuote(ctx context.Context, data invoicing.QuoteData, createdBy int64) (*invoicing.Invoice, error)
}

// Service wraps quote business rules.
type Service struct {
	repo     Repository
	clients  ClientDirectory
	invoices InvoiceCreator
}

// NewService constructs a Service.
func NewService(repo Repository, dir ClientDirectory, invoices InvoiceCreator) *Service {
	return &Service{repo: repo, clients: dir, invoices: invoices}
}

func linesFromReqs(reqs []QuoteLineReq) []QuoteLine {
	out := make([]QuoteLine, 0, len(reqs))
	for i, lr := range reqs {
		order := lr.LineOrder
		if order == 0 {
			order = i
		}
		out = append(out, QuoteLine{
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

func pricingItems(lines []QuoteLine) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.PricingItem())
	}
	return items
}

// CreateQuote drafts a quote, computing totals from its lines.
func (s *Service) CreateQuote(ctx context.Context, req CreateQuoteRequest, createdBy int64) (*Quote, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoLines
	}
	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	lines := linesFromReqs(req.Lines)
	totals := pricing.CalculateTotals(pricingItems(lines))

	q := Quote{
		ClientID:   client.ID,
		Currency:   req.Currency,
		IssueDate:  req.IssueDate,
		ValidUntil: req.ValidUntil,
		Subtotal:   totals.Subtotal,
		TaxAmount:  totals.TaxAmount,
		Total:      totals.Total,
		Status:     QuoteStatusDraft,
		Notes:      req.Notes,
		CreatedBy:  createdBy,
	}
	if q.Currency == "" {
		q.Currency = "EUR"
	}
	if q.ValidUntil.IsZero() {
		q.ValidUntil = req.IssueDate.AddDate(0, 0, defaultValidityDays)
	}

	var quoteID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		num, err := repo.GenerateQuoteNumber(ctx, q.IssueDate.Year())
		if err != nil {
			return err
		}
		q.Number = num
		id, err := repo.CreateQuote(ctx, q)
		if err != nil {
			return err
		}
		quoteID = id
		for _, l := range lines {
			if err := repo.CreateQuoteLine(ctx, id, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetQuote(ctx, quoteID)
}

// UpdateQuote edits a draft quote, recomputing totals when lines change.
func (s *Service) UpdateQuote(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != QuoteStatusDraft {
		return nil, fmt.Errorf("%w: only draft quotes can be edited", ErrInvalidStatus)
	}

	updates := make(map[string]interface{})
	if req.IssueDate != nil {
		updates["issue_date"] = *req.IssueDate
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
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

			if err := repo.DeleteQuoteLines(ctx, id); err != nil {
				return err
			}
			for _, l := range lines {
				if err := repo.CreateQuoteLine(ctx, id, l); err != nil {
					return err
				}
			}
		}
		return repo.UpdateQuote(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetQuote(ctx, id)
}

// Send marks a draft quote as sent to the client.
func (s *Service) Send(ctx context.Context, id int64) (*Quote, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != QuoteStatusDraft {
		return nil, fmt.Errorf("%w: only draft quotes can be sent", ErrInvalidStatus)
	}
	if err := s.repo.UpdateQuote(ctx, id, map[string]interface{}{
		"status":  QuoteStatusSent,
		"sent_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	return s.repo.GetQuote(ctx, id)
}

// Accept records the client's acceptance of a sent quote.
func (s *Service) Accept(ctx context.Context, id int64) (*Quote, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != QuoteStatusSent {
		return nil, fmt.Errorf("%w: only sent quotes can be accepted", ErrInvalidStatus)
	}
	if err := s.repo.UpdateQuote(ctx, id, map[string]interface{}{
		"status":      QuoteStatusAccepted,
		"accepted_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	return s.repo.GetQuote(ctx, id)
}

// Refuse records the client's refusal of a sent quote.
func (s *Service) Refuse(ctx context.Context, id int64, reason string) (*Quote, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != QuoteStatusSent {
		return nil, fmt.Errorf("%w: only sent quotes can be refused", ErrInvalidStatus)
	}
	if err := s.repo.UpdateQuote(ctx, id, map[string]interface{}{
		"status":        QuoteStatusRefused,
		"refused_at":    time.Now(),
		"refuse_reason": reason,
	}); err != nil {
		return nil, err
	}
	return s.repo.GetQuote(ctx, id)
}

// ConvertToInvoice issues an invoice from an accepted quote. A quote
// converts once; repeating the call returns the existing link.
func (s *Service) ConvertToInvoice(ctx context.Context, id int64, createdBy int64) (*invoicing.Invoice, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.InvoiceID != nil {
		return nil, fmt.Errorf("%w: invoice %d", ErrAlreadyConverted, *q.InvoiceID)
	}
	if q.Status != QuoteStatusAccepted {
		return nil, fmt.Errorf("%w: only accepted quotes convert", ErrInvalidStatus)
	}

	lines, err := s.repo.ListQuoteLines(ctx, id)
	if err != nil {
		return nil, err
	}
	data := invoicing.QuoteData{
		QuoteID:  q.ID,
		ClientID: q.ClientID,
		Currency: q.Currency,
		Notes:    q.Notes,
		Lines:    make([]invoicing.InvoiceLine, 0, len(lines)),
	}
	for _, l := range lines {
		data.Lines = append(data.Lines, invoicing.InvoiceLine{
			Kind:            l.Kind,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			TaxRate:         l.TaxRate,
			DiscountPercent: l.DiscountPercent,
			DiscountAmount:  l.DiscountAmount,
			PurchasePrice:   l.PurchasePrice,
			LineOrder:       l.LineOrder,
		})
	}

	inv, err := s.invoices.CreateFromQuote(ctx, data, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateQuote(ctx, id, map[string]interface{}{"invoice_id": inv.ID}); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetQuoteWithDetails loads the quote, its lines and the VAT breakdown
// recomputed from the lines.
func (s *Service) GetQuoteWithDetails(ctx context.Context, id int64) (*QuoteWithDetails, error) {
	q, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListQuoteLines(ctx, id)
	if err != nil {
		return nil, err
	}
	totals := pricing.CalculateTotals(pricingItems(lines))
	return &QuoteWithDetails{
		Quote:        *q,
		Lines:        lines,
		VATBreakdown: totals.VATBreakdown,
	}, nil
}

func (s *Service) ListQuotes(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.ListQuotes(ctx, req)
}

// ExpireStale marks sent quotes whose validity date has passed.
func (s *Service) ExpireStale(ctx context.Context, asOf time.Time) ([]Quote, error) {
	candidates, err := s.repo.ListExpiryCandidates(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, q := range candidates {
		if err := s.repo.UpdateQuote(ctx, q.ID, map[string]interface{}{"status": QuoteStatusExpired}); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}
