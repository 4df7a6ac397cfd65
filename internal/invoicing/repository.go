package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom-app/gescom/internal/platform/db"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrDuplicateNumber = errors.New("invoice number already exists")
)

// Repository persists invoices and their payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	ListInvoiceLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	CreateInvoiceLine(ctx context.Context, invoiceID int64, l InvoiceLine) error
	DeleteInvoiceLines(ctx context.Context, invoiceID int64) error
	UpdateInvoice(ctx context.Context, id int64, updates map[string]interface{}) error
	GenerateInvoiceNumber(ctx context.Context, year int) (string, error)

	CreatePayment(ctx context.Context, p Payment) (int64, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	SumPayments(ctx context.Context, invoiceID int64) (float64, error)

	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Invoice, error)
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

const invoiceColumns = `i.id, i.number, i.client_id, c.company_name, i.currency, i.issue_date, i.due_at,
i.subtotal, i.tax_amount, i.total, i.status, i.is_overdue, i.sent_at, i.paid_at,
i.cancelled_at, i.cancel_reason, i.notes, i.quote_id, i.created_by, i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.ClientName, &inv.Currency,
		&inv.IssueDate, &inv.DueAt, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.Status,
		&inv.IsOverdue, &inv.SentAt, &inv.PaidAt, &inv.CancelledAt, &inv.CancelReason,
		&inv.Notes, &inv.QuoteID, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM invoices i JOIN clients c ON c.id = i.client_id WHERE i.id = $1`, invoiceColumns), id))
}

func (r *repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("i.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.Overdue != nil {
		conditions = append(conditions, fmt.Sprintf("i.is_overdue = $%d", argPos))
		args = append(args, *req.Overdue)
		argPos++
	}
	if req.IssuedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("i.issue_date >= $%d", argPos))
		args = append(args, *req.IssuedFrom)
		argPos++
	}
	if req.IssuedTo != nil {
		conditions = append(conditions, fmt.Sprintf("i.issue_date <= $%d", argPos))
		args = append(args, *req.IssuedTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM invoices i %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices i JOIN clients c ON c.id = i.client_id %s
ORDER BY i.issue_date DESC, i.id DESC LIMIT $%d OFFSET $%d`, invoiceColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) ListInvoiceLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, kind, description, quantity, unit_price, tax_rate,
discount_percent, discount_amount, purchase_price, line_order, created_at
FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_order, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Kind, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.TaxRate, &l.DiscountPercent, &l.DiscountAmount, &l.PurchasePrice, &l.LineOrder, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoices
(number, client_id, currency, issue_date, due_at, subtotal, tax_amount, total, status, notes, quote_id, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now()) RETURNING id`,
		inv.Number, inv.ClientID, inv.Currency, inv.IssueDate, inv.DueAt, inv.Subtotal,
		inv.TaxAmount, inv.Total, inv.Status, inv.Notes, inv.QuoteID, inv.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) CreateInvoiceLine(ctx context.Context, invoiceID int64, l InvoiceLine) error {
	_, err := r.db.Exec(ctx, `INSERT INTO invoice_lines
(invoice_id, kind, description, quantity, unit_price, tax_rate, discount_percent, discount_amount, purchase_price, line_order, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())`,
		invoiceID, l.Kind, l.Description, l.Quantity, l.UnitPrice, l.TaxRate,
		l.DiscountPercent, l.DiscountAmount, l.PurchasePrice, l.LineOrder)
	return err
}

func (r *repository) DeleteInvoiceLines(ctx context.Context, invoiceID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *repository) UpdateInvoice(ctx context.Context, id int64, updates map[string]interface{}) error {
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
		fmt.Sprintf("UPDATE invoices SET %s, updated_at = now() WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// GenerateInvoiceNumber reserves the next FAC-YYYY-NNNN number.
func (r *repository) GenerateInvoiceNumber(ctx context.Context, year int) (string, error) {
	name := fmt.Sprintf("invoice-%d", year)
	var n int64
	err := r.db.QueryRow(ctx, `INSERT INTO number_sequences (name, current)
VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET current = number_sequences.current + 1
RETURNING current`, name).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FAC-%d-%04d", year, n), nil
}

func (r *repository) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO payments
(invoice_id, amount, method, reference, paid_at, recorded_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,now()) RETURNING id`,
		p.InvoiceID, p.Amount, p.Method, p.Reference, p.PaidAt, p.RecordedBy).Scan(&id)
	return id, err
}

func (r *repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, amount, method, reference, paid_at, recorded_by, created_at
FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference,
			&p.PaidAt, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM invoices i JOIN clients c ON c.id = i.client_id
WHERE i.status = $1 AND NOT i.is_overdue AND i.due_at < $2 ORDER BY i.due_at`, invoiceColumns),
		InvoiceStatusSent, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}
