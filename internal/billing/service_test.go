package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	suppliers map[int64]*Supplier
	bills     map[int64]*Bill
	lines     map[int64][]BillLine
	seq       map[string]int64
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers: make(map[int64]*Supplier),
		bills:     make(map[int64]*Bill),
		lines:     make(map[int64][]BillLine),
		seq:       make(map[string]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return nil, ErrSupplierNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	var out []Supplier
	for _, s := range r.suppliers {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *memoryRepo) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	r.nextID++
	s.ID = r.nextID
	r.suppliers[s.ID] = &s
	return s.ID, nil
}

func (r *memoryRepo) GetBill(ctx context.Context, id int64) (*Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return nil, ErrBillNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memoryRepo) ListBillLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return r.lines[billID], nil
}

func (r *memoryRepo) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error) {
	var out []Bill
	for _, b := range r.bills {
		if req.Status != nil && b.Status != *req.Status {
			continue
		}
		if req.SupplierID != nil && b.SupplierID != *req.SupplierID {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (r *memoryRepo) CreateBill(ctx context.Context, b Bill) (int64, error) {
	r.nextID++
	b.ID = r.nextID
	if sup, ok := r.suppliers[b.SupplierID]; ok {
		b.SupplierName = sup.Name
	}
	r.bills[b.ID] = &b
	return b.ID, nil
}

func (r *memoryRepo) CreateBillLine(ctx context.Context, billID int64, l BillLine) error {
	l.BillID = billID
	r.lines[billID] = append(r.lines[billID], l)
	return nil
}

func (r *memoryRepo) DeleteBillLines(ctx context.Context, billID int64) error {
	delete(r.lines, billID)
	return nil
}

func (r *memoryRepo) UpdateBill(ctx context.Context, id int64, updates map[string]interface{}) error {
	b, ok := r.bills[id]
	if !ok {
		return ErrBillNotFound
	}
	for col, val := range updates {
		switch col {
		case "status":
			b.Status = val.(BillStatus)
		case "subtotal":
			b.Subtotal = val.(float64)
		case "tax_amount":
			b.TaxAmount = val.(float64)
		case "total":
			b.Total = val.(float64)
		case "paid_at":
			t := val.(time.Time)
			b.PaidAt = &t
		case "paid_by":
			v := val.(int64)
			b.PaidBy = &v
		case "voided_at":
			t := val.(time.Time)
			b.VoidedAt = &t
		case "voided_by":
			v := val.(int64)
			b.VoidedBy = &v
		case "void_reason":
			v := val.(string)
			b.VoidReason = &v
		case "due_at":
			b.DueAt = val.(time.Time)
		case "notes":
			v := val.(string)
			b.Notes = &v
		}
	}
	return nil
}

func (r *memoryRepo) GenerateBillNumber(ctx context.Context, year int) (string, error) {
	name := fmt.Sprintf("bill-%d", year)
	r.seq[name]++
	return fmt.Sprintf("BIL-%d-%04d", year, r.seq[name]), nil
}

func setupBillService(t *testing.T) (*Service, int64) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo)
	sup, err := svc.CreateSupplier(context.Background(), CreateSupplierRequest{Name: "Papeterie Bernard", PaymentTermsDays: 45})
	require.NoError(t, err)
	return svc, sup.ID
}

func TestCreateBillComputesTotals(t *testing.T) {
	svc, supplierID := setupBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Lines: []BillLineReq{
			{Kind: "item", Description: "Ramettes A4", Quantity: 10, UnitPrice: 5, TaxRate: 20},
			{Kind: "item", Description: "Café", Quantity: 2, UnitPrice: 12, TaxRate: 5.5},
		},
	}, 1)
	require.NoError(t, err)

	require.InDelta(t, 74, bill.Subtotal, 1e-9)
	require.InDelta(t, 10+1.32, bill.TaxAmount, 1e-9)
	require.InDelta(t, 85.32, bill.Total, 1e-9)
	require.Equal(t, BillStatusDraft, bill.Status)
	require.Equal(t, "BIL-2025-0001", bill.Number)
}

func TestCreateBillDefaultsDueDateFromSupplierTerms(t *testing.T) {
	svc, supplierID := setupBillService(t)

	billDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	bill, err := svc.CreateBill(context.Background(), CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   billDate,
		Lines:      []BillLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)
	require.Equal(t, billDate.AddDate(0, 0, 45), bill.DueAt)
	require.Equal(t, "EUR", bill.Currency)
}

func TestCreateBillRequiresLines(t *testing.T) {
	svc, supplierID := setupBillService(t)
	_, err := svc.CreateBill(context.Background(), CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   time.Now(),
	}, 1)
	require.ErrorIs(t, err, ErrNoLines)
}

func TestUpdateBillRecomputesTotals(t *testing.T) {
	svc, supplierID := setupBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   time.Now(),
		Lines:      []BillLineReq{{Kind: "item", Quantity: 1, UnitPrice: 100, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	newLines := []BillLineReq{
		{Kind: "item", Quantity: 2, UnitPrice: 100, TaxRate: 20, DiscountPercent: 10},
	}
	updated, err := svc.UpdateBill(ctx, bill.ID, UpdateBillRequest{Lines: &newLines})
	require.NoError(t, err)
	require.InDelta(t, 180, updated.Subtotal, 1e-9)
	require.InDelta(t, 36, updated.TaxAmount, 1e-9)
	require.InDelta(t, 216, updated.Total, 1e-9)
}

func TestUpdateBillRejectsNonDraft(t *testing.T) {
	svc, supplierID := setupBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   time.Now(),
		Lines:      []BillLineReq{{Kind: "item", Quantity: 1, UnitPrice: 10, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, bill.ID)
	require.NoError(t, err)

	notes := "trop tard"
	_, err = svc.UpdateBill(ctx, bill.ID, UpdateBillRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBillLifecycle(t *testing.T) {
	svc, supplierID := setupBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   time.Now(),
		Lines:      []BillLineReq{{Kind: "item", Quantity: 1, UnitPrice: 10, TaxRate: 20}},
	}, 1)
	require.NoError(t, err)

	bill, err = svc.Schedule(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusScheduled, bill.Status)

	bill, err = svc.MarkPaid(ctx, bill.ID, 7)
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, bill.Status)
	require.NotNil(t, bill.PaidAt)
	require.Equal(t, int64(7), *bill.PaidBy)

	_, err = svc.Void(ctx, bill.ID, 7, "erreur")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestGetBillWithDetailsBreakdownMatchesStoredTotals(t *testing.T) {
	svc, supplierID := setupBillService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateBillRequest{
		SupplierID: supplierID,
		BillDate:   time.Now(),
		Lines: []BillLineReq{
			{Kind: "section", Description: "Fournitures"},
			{Kind: "item", Quantity: 3, UnitPrice: 19.99, TaxRate: 20},
			{Kind: "item", Quantity: 1, UnitPrice: 8.4, TaxRate: 5.5},
		},
	}, 1)
	require.NoError(t, err)

	details, err := svc.GetBillWithDetails(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, details.Lines, 3)
	require.Len(t, details.VATBreakdown, 2)

	var base, vat float64
	for _, v := range details.VATBreakdown {
		base += v.Base
		vat += v.VAT
	}
	require.InDelta(t, details.Subtotal, base, 1e-9)
	require.InDelta(t, details.TaxAmount, vat, 1e-9)
}
