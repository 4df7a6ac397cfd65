package quotes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gescom-app/gescom/internal/crm/clients"
	"github.com/gescom-app/gescom/internal/invoicing"
)

type memoryRepo struct {
	quotes map[int64]*Quote
	lines  map[int64][]QuoteLine
	seq    map[string]int64
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotes: make(map[int64]*Quote),
		lines:  make(map[int64][]QuoteLine),
		seq:    make(map[string]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	cp := *q
	return &cp, nil
}

func (r *memoryRepo) ListQuotes(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	var out []Quote
	for _, q := range r.quotes {
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListQuoteLines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
	return r.lines[quoteID], nil
}

func (r *memoryRepo) CreateQuote(ctx context.Context, q Quote) (int64, error) {
	r.nextID++
	q.ID = r.nextID
	r.quotes[q.ID] = &q
	return q.ID, nil
}

func (r *memoryRepo) CreateQuoteLine(ctx context.Context, quoteID int64, l QuoteLine) error {
	l.QuoteID = quoteID
	r.lines[quoteID] = append(r.lines[quoteID], l)
	return nil
}

func (r *memoryRepo) DeleteQuoteLines(ctx context.Context, quoteID int64) error {
	delete(r.lines, quoteID)
	return nil
}

func (r *memoryRepo) UpdateQuote(ctx context.Context, id int64, updates map[string]interface{}) error {
	q, ok := r.quotes[id]
	if !ok {
		return ErrQuoteNotFound
	}
	for col, val := range updates {
		switch col {
		case "status":
			q.Status = val.(QuoteStatus)
		case "subtotal":
			q.Subtotal = val.(float64)
		case "tax_amount":
			q.TaxAmount = val.(float64)
		case "total":
			q.Total = val.(float64)
		case "sent_at":
			t := val.(time.Time)
			q.SentAt = &t
		case "accepted_at":
			t := val.(time.Time)
			q.AcceptedAt = &t
		case "refused_at":
			t := val.(time.Time)
			q.RefusedAt = &t
		case "refuse_reason":
			v := val.(string)
			q.RefuseReason = &v
		case "invoice_id":
			v := val.(int64)
			q.InvoiceID = &v
		case "issue_date":
			q.IssueDate = val.(time.Time)
		case "valid_until":
			q.ValidUntil = val.(time.Time)
		case "notes":
			v := val.(string)
			q.Notes = &v
		}
	}
	return nil
}

func (r *memoryRepo) GenerateQuoteNumber(ctx context.Context, year int) (string, error) {
	name := fmt.Sprintf("quote-%d", year)
	r.seq[name]++
	return fmt.Sprintf("DEV-%d-%04d", year, r.seq[name]), nil
}

func (r *memoryRepo) ListExpiryCandidates(ctx context.Context, asOf time.Time) ([]Quote, error) {
	var out []Quote
	for _, q := range r.quotes {
		if q.Status == QuoteStatusSent && q.ValidUntil.Before(asOf) {
			out = append(out, *q)
		}
	}
	return out, nil
}

type stubDirectory struct {
	client *clients.Client
}

func (d *stubDirectory) Get(ctx context.Context, id int64) (*clients.Client, error) {
	if d.client == nil || d.client.ID != id {
		return nil, clients.ErrNotFound
	}
	return d.client, nil
}

type stubInvoiceCreator struct {
	created []invoicing.QuoteData
	nextID  int64
}

func (c *stubInvoiceCreator) CreateFromQuote(ctx context.Context, data invoicing.QuoteData, createdBy int64) (*invoicing.Invoice, error) {
	c.nextID++
	c.created = append(c.created, data)
	return &invoicing.Invoice{
		ID:       c.nextID,
		ClientID: data.ClientID,
		QuoteID:  &data.QuoteID,
		Status:   invoicing.InvoiceStatusDraft,
	}, nil
}

func setupQuoteService(t *testing.T) (*Service, *memoryRepo, *stubInvoiceCreator) {
	t.Helper()
	repo := newMemoryRepo()
	dir := &stubDirectory{client: &clients.Client{
		ID:               42,
		CompanyName:      "Boulangerie Martin",
		PaymentTermsDays: 30,
	}}
	creator := &stubInvoiceCreator{}
	return NewService(repo, dir, creator), repo, creator
}

func TestCreateQuoteComputesTotalsAndDefaults(t *testing.T) {
	svc, _, _ := setupQuoteService(t)

	issue := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	q, err := svc.CreateQuote(context.Background(), CreateQuoteRequest{
		ClientID:  42,
		IssueDate: issue,
		Lines: []QuoteLineReq{
			{Kind: "item", Description: "Refonte site web", Quantity: 1, UnitPrice: 3000, TaxRate: 20, DiscountPercent: 10},
		},
	}, 1)
	require.NoError(t, err)

	require.Equal(t, "DEV-2025-0001", q.Number)
	require.InDelta(t, 2700, q.Subtotal, 1e-9)
	require.InDelta(t, 540, q.TaxAmount, 1e-9)
	require.InDelta(t, 3240, q.Total, 1e-9)
	require.Equal(t, QuoteStatusDraft, q.Status)
	require.Equal(t, issue.AddDate(0, 0, defaultValidityDays), q.ValidUntil)
}

func TestQuoteLifecycleAcceptPath(t *testing.T) {
	svc, _, _ := setupQuoteService(t)
	ctx := context.Background()

	q, err := svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []QuoteLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, q.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)

	q, err = svc.Send(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusSent, q.Status)

	q, err = svc.Accept(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusAccepted, q.Status)
	require.NotNil(t, q.AcceptedAt)
}

func TestRefuseRecordsReason(t *testing.T) {
	svc, _, _ := setupQuoteService(t)
	ctx := context.Background()

	q, err := svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []QuoteLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, q.ID)
	require.NoError(t, err)

	q, err = svc.Refuse(ctx, q.ID, "budget insuffisant")
	require.NoError(t, err)
	require.Equal(t, QuoteStatusRefused, q.Status)
	require.Equal(t, "budget insuffisant", *q.RefuseReason)
}

func TestConvertToInvoiceOnce(t *testing.T) {
	svc, repo, creator := setupQuoteService(t)
	ctx := context.Background()

	q, err := svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines: []QuoteLineReq{
			{Kind: "item", Description: "Forfait", Quantity: 1, UnitPrice: 1200, TaxRate: 20},
		},
	}, 1)
	require.NoError(t, err)

	_, err = svc.ConvertToInvoice(ctx, q.ID, 1)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Send(ctx, q.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, q.ID)
	require.NoError(t, err)

	inv, err := svc.ConvertToInvoice(ctx, q.ID, 1)
	require.NoError(t, err)
	require.Equal(t, q.ID, *inv.QuoteID)
	require.Len(t, creator.created, 1)
	require.Len(t, creator.created[0].Lines, 1)
	require.Equal(t, inv.ID, *repo.quotes[q.ID].InvoiceID)

	_, err = svc.ConvertToInvoice(ctx, q.ID, 1)
	require.ErrorIs(t, err, ErrAlreadyConverted)
	require.Len(t, creator.created, 1)
}

func TestUpdateQuoteRejectsNonDraft(t *testing.T) {
	svc, _, _ := setupQuoteService(t)
	ctx := context.Background()

	q, err := svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []QuoteLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, q.ID)
	require.NoError(t, err)

	notes := "revu"
	_, err = svc.UpdateQuote(ctx, q.ID, UpdateQuoteRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestExpireStaleOnlyTouchesSentQuotes(t *testing.T) {
	svc, repo, _ := setupQuoteService(t)
	ctx := context.Background()

	past := time.Now().AddDate(0, 0, -60)
	sent, err := svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:   42,
		IssueDate:  past,
		ValidUntil: past.AddDate(0, 0, 30),
		Lines:      []QuoteLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, sent.ID)
	require.NoError(t, err)

	draft, err := svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:   42,
		IssueDate:  past,
		ValidUntil: past.AddDate(0, 0, 30),
		Lines:      []QuoteLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	expired, err := svc.ExpireStale(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, sent.ID, expired[0].ID)
	require.Equal(t, QuoteStatusExpired, repo.quotes[sent.ID].Status)
	require.Equal(t, QuoteStatusDraft, repo.quotes[draft.ID].Status)
}
