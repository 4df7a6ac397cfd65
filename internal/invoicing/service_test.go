package invoicing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gescom-app/gescom/internal/crm/clients"
)

type memoryRepo struct {
	invoices map[int64]*Invoice
	lines    map[int64][]InvoiceLine
	payments map[int64][]Payment
	seq      map[string]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[int64]*Invoice),
		lines:    make(map[int64][]InvoiceLine),
		payments: make(map[int64][]Payment),
		seq:      make(map[string]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if req.Status != nil && inv.Status != *req.Status {
			continue
		}
		if req.ClientID != nil && inv.ClientID != *req.ClientID {
			continue
		}
		if req.Overdue != nil && inv.IsOverdue != *req.Overdue {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListInvoiceLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	return r.lines[invoiceID], nil
}

func (r *memoryRepo) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	r.nextID++
	inv.ID = r.nextID
	r.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (r *memoryRepo) CreateInvoiceLine(ctx context.Context, invoiceID int64, l InvoiceLine) error {
	l.InvoiceID = invoiceID
	r.lines[invoiceID] = append(r.lines[invoiceID], l)
	return nil
}

func (r *memoryRepo) DeleteInvoiceLines(ctx context.Context, invoiceID int64) error {
	delete(r.lines, invoiceID)
	return nil
}

func (r *memoryRepo) UpdateInvoice(ctx context.Context, id int64, updates map[string]interface{}) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	for col, val := range updates {
		switch col {
		case "status":
			inv.Status = val.(InvoiceStatus)
		case "subtotal":
			inv.Subtotal = val.(float64)
		case "tax_amount":
			inv.TaxAmount = val.(float64)
		case "total":
			inv.Total = val.(float64)
		case "is_overdue":
			inv.IsOverdue = val.(bool)
		case "sent_at":
			t := val.(time.Time)
			inv.SentAt = &t
		case "paid_at":
			t := val.(time.Time)
			inv.PaidAt = &t
		case "cancelled_at":
			t := val.(time.Time)
			inv.CancelledAt = &t
		case "cancel_reason":
			v := val.(string)
			inv.CancelReason = &v
		case "issue_date":
			inv.IssueDate = val.(time.Time)
		case "due_at":
			inv.DueAt = val.(time.Time)
		case "notes":
			v := val.(string)
			inv.Notes = &v
		}
	}
	return nil
}

func (r *memoryRepo) GenerateInvoiceNumber(ctx context.Context, year int) (string, error) {
	name := fmt.Sprintf("invoice-%d", year)
	r.seq[name]++
	return fmt.Sprintf("FAC-%d-%04d", year, r.seq[name]), nil
}

func (r *memoryRepo) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.payments[p.InvoiceID] = append(r.payments[p.InvoiceID], p)
	return p.ID, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return r.payments[invoiceID], nil
}

func (r *memoryRepo) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	for _, p := range r.payments[invoiceID] {
		sum += p.Amount
	}
	return sum, nil
}

func (r *memoryRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.Status == InvoiceStatusSent && !inv.IsOverdue && inv.DueAt.Before(asOf) {
			out = append(out, *inv)
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

func setupInvoiceService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	dir := &stubDirectory{client: &clients.Client{
		ID:               42,
		Code:             "CLI-0042",
		CompanyName:      "Boulangerie Martin",
		PaymentTermsDays: 30,
	}}
	return NewService(repo, dir), repo
}

func ptr[T any](v T) *T { return &v }

func TestCreateInvoiceComputesTotalsAndNumber(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	issue := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: issue,
		Lines: []InvoiceLineReq{
			{Kind: "item", Description: "Prestation conseil", Quantity: 2, UnitPrice: 450, TaxRate: 20},
			{Kind: "text", Description: "Intervention sur site"},
		},
	}, 1)
	require.NoError(t, err)

	require.Equal(t, "FAC-2025-0001", inv.Number)
	require.InDelta(t, 900, inv.Subtotal, 1e-9)
	require.InDelta(t, 180, inv.TaxAmount, 1e-9)
	require.InDelta(t, 1080, inv.Total, 1e-9)
	require.Equal(t, InvoiceStatusDraft, inv.Status)
	require.Equal(t, issue.AddDate(0, 0, 30), inv.DueAt)
	require.Equal(t, "EUR", inv.Currency)
}

func TestCreateInvoiceUnknownClient(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		ClientID:  999,
		IssueDate: time.Now(),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 10, TaxRate: 20}},
	}, 1)
	require.ErrorIs(t, err, clients.ErrNotFound)
}

func TestRecordPaymentFlipsToPaid(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 1000, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	details, err := svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: 700, Method: "transfer"}, 1)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusSent, details.Status)
	require.InDelta(t, 700, details.PaidAmount, 1e-9)
	require.InDelta(t, 500, details.Balance, 1e-9)

	details, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: 500, Method: "cheque"}, 1)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, details.Status)
	require.InDelta(t, 0, details.Balance, 1e-9)
	require.NotNil(t, details.PaidAt)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: 200, Method: "card"}, 1)
	require.ErrorIs(t, err, ErrOverpayment)
}

func TestRecordPaymentRequiresSentStatus(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: 50, Method: "cash"}, 1)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCancelRejectedAfterPayment(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: 50, Method: "transfer"}, 1)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, inv.ID, "doublon")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateInvoiceRejectsNonDraft(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	notes := "modif"
	_, err = svc.UpdateInvoice(ctx, inv.ID, UpdateInvoiceRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMarginsTreatUnknownCostAsFullMargin(t *testing.T) {
	svc, _ := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: time.Now(),
		Lines: []InvoiceLineReq{
			{Kind: "item", Quantity: 2, UnitPrice: 100, TaxRate: 20, PurchasePrice: ptr(60.0)},
			{Kind: "item", Quantity: 1, UnitPrice: 50, TaxRate: 20},
		},
	}, 1)
	require.NoError(t, err)

	m, err := svc.Margins(ctx, inv.ID)
	require.NoError(t, err)
	require.InDelta(t, 120, m.TotalCost, 1e-9)
	require.InDelta(t, 250, m.TotalSale, 1e-9)
	require.InDelta(t, 130, m.TotalMargin, 1e-9)
	require.InDelta(t, 52, m.MarginPercent, 1e-9)
}

func TestFlagOverdueMarksSentInvoicesPastDue(t *testing.T) {
	svc, repo := setupInvoiceService(t)
	ctx := context.Background()

	past := time.Now().AddDate(0, 0, -10)
	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: past,
		DueAt:     past.AddDate(0, 0, 5),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	draft, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
		ClientID:  42,
		IssueDate: past,
		DueAt:     past.AddDate(0, 0, 5),
		Lines:     []InvoiceLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	flagged, err := svc.FlagOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	require.Equal(t, inv.ID, flagged[0].ID)

	require.True(t, repo.invoices[inv.ID].IsOverdue)
	require.False(t, repo.invoices[draft.ID].IsOverdue)

	// Already-flagged invoices are not returned again.
	flagged, err = svc.FlagOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, flagged)
}

func TestCreateFromQuoteCarriesLines(t *testing.T) {
	svc, repo := setupInvoiceService(t)
	ctx := context.Background()

	inv, err := svc.CreateFromQuote(ctx, QuoteData{
		QuoteID:  7,
		ClientID: 42,
		Lines: []InvoiceLine{
			{Kind: "item", Description: "Forfait installation", Quantity: 1, UnitPrice: 1200, TaxRate: 20},
		},
	}, 1)
	require.NoError(t, err)

	require.NotNil(t, inv.QuoteID)
	require.Equal(t, int64(7), *inv.QuoteID)
	require.InDelta(t, 1440, inv.Total, 1e-9)
	require.Equal(t, InvoiceStatusDraft, inv.Status)
	require.Len(t, repo.lines[inv.ID], 1)
}
