package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom-app/gescom/internal/platform/db"
)

var (
	ErrBillNotFound     = errors.New("bill not found")
	ErrSupplierNotFound = errors.New("supplier not found")
	ErrDuplicateNumber  = errors.New("bill number already exists")
)

// Repository persists suppliers and bills.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetSupplier(ctx context.Context, id int64) (*Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (int64, error)

	GetBill(ctx context.Context, id int64) (*Bill, error)
	ListBillLines(ctx context.Context, billID int64) ([]BillLine, error)
	ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error)
	CreateBill(ctx context.Context, b Bill) (int64, error)
	CreateBillLine(ctx context.Context, billID int64, l BillLine) error
	DeleteBillLines(ctx context.Context, billID int64) error
	UpdateBill(ctx context.Context, id int64, updates map[string]interface{}) error
	GenerateBillNumber(ctx context.Context, year int) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository over the pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) GetSupplier(ctx context.Context, id int64) (*Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, name, siret, email, phone, iban, payment_terms_days, is_active, created_at, updated_at
FROM suppliers WHERE id = $1`, id).Scan(&s.ID, &s.Name, &s.SIRET, &s.Email, &s.Phone, &s.IBAN,
		&s.PaymentTermsDays, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSupplierNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	query := `SELECT id, name, siret, email, phone, iban, payment_terms_days, is_active, created_at, updated_at FROM suppliers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.SIRET, &s.Email, &s.Phone, &s.IBAN,
			&s.PaymentTermsDays, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (name, siret, email, phone, iban, payment_terms_days, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now()) RETURNING id`,
		s.Name, s.SIRET, s.Email, s.Phone, s.IBAN, s.PaymentTermsDays, s.IsActive).Scan(&id)
	return id, err
}

const billColumns = `b.id, b.number, b.supplier_id, s.name, b.currency, b.bill_date, b.due_at,
b.subtotal, b.tax_amount, b.total, b.status, b.paid_at, b.paid_by,
b.voided_at, b.voided_by, b.void_reason, b.notes, b.created_by, b.created_at, b.updated_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.Number, &b.SupplierID, &b.SupplierName, &b.Currency, &b.BillDate,
		&b.DueAt, &b.Subtotal, &b.TaxAmount, &b.Total, &b.Status, &b.PaidAt, &b.PaidBy,
		&b.VoidedAt, &b.VoidedBy, &b.VoidReason, &b.Notes, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) GetBill(ctx context.Context, id int64) (*Bill, error) {
	return scanBill(r.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM bills b JOIN suppliers s ON s.id = b.supplier_id WHERE b.id = $1`, billColumns), id))
}

func (r *repository) ListBillLines(ctx context.Context, billID int64) ([]BillLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, bill_id, kind, description, quantity, unit_price, tax_rate,
discount_percent, discount_amount, line_order, created_at
FROM bill_lines WHERE bill_id = $1 ORDER BY line_order, id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillLine
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.Kind, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.TaxRate, &l.DiscountPercent, &l.DiscountAmount, &l.LineOrder, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.SupplierID != nil {
		conditions = append(conditions, fmt.Sprintf("b.supplier_id = $%d", argPos))
		args = append(args, *req.SupplierID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DueFrom != nil {
		conditions = append(conditions, fmt.Sprintf("b.due_at >= $%d", argPos))
		args = append(args, *req.DueFrom)
		argPos++
	}
	if req.DueTo != nil {
		conditions = append(conditions, fmt.Sprintf("b.due_at <= $%d", argPos))
		args = append(args, *req.DueTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM bills b %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM bills b JOIN suppliers s ON s.id = b.supplier_id %s
ORDER BY b.due_at, b.id LIMIT $%d OFFSET $%d`, billColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) CreateBill(ctx context.Context, b Bill) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO bills
(number, supplier_id, currency, bill_date, due_at, subtotal, tax_amount, total, status, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now()) RETURNING id`,
		b.Number, b.SupplierID, b.Currency, b.BillDate, b.DueAt, b.Subtotal, b.TaxAmount,
		b.Total, b.Status, b.Notes, b.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) CreateBillLine(ctx context.Context, billID int64, l BillLine) error {
	_, err := r.db.Exec(ctx, `INSERT INTO bill_lines
(bill_id, kind, description, quantity, unit_price, tax_rate, discount_percent, discount_amount, line_order, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())`,
		billID, l.Kind, l.Description, l.Quantity, l.UnitPrice, l.TaxRate,
		l.DiscountPercent, l.DiscountAmount, l.LineOrder)
	return err
}

func (r *repository) DeleteBillLines(ctx context.Context, billID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM bill_lines WHERE bill_id = $1`, billID)
	return err
}

func (r *repository) UpdateBill(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClause := ""
	args := []interface{}{id}
	argPos := 2
	for col, val := range updates {
		if setClause != "" {
			setClause += ", "
		}
		setClause += fmt.Sprintf("%s = $%d", col, argPos)
		args = append(args, val)
		argPos++
	}
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf("UPDATE bills SET %s, updated_at = now() WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

// GenerateBillNumber reserves the next BIL-YYYY-NNNN number.
func (r *repository) GenerateBillNumber(ctx context.Context, year int) (string, error) {
	name := fmt.Sprintf("bill-%d", year)
	var n int64
	err := r.db.QueryRow(ctx, `INSERT INTO number_sequences (name, current)
VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET current = number_sequences.current + 1
RETURNING current`, name).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BIL-%d-%04d", year, n), nil
}
