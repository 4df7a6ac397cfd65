package quotes

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
	ErrQuoteNotFound   = errors.New("quote not found")
	ErrDuplicateNumber = errors.New("quote number already exists")
)

// Repository persists quotes.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetQuote(ctx context.Context, id int64) (*Quote, error)
	ListQuotes(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	ListQuoteLines(ctx context.Context, quoteID int64) ([]QuoteLine, error)
	CreateQuote(ctx context.Context, q Quote) (int64, error)
	CreateQuoteLine(ctx context.Context, quoteID int64, l QuoteLine) error
	DeleteQuoteLines(ctx context.Context, quoteID int64) error
	UpdateQuote(ctx context.Context, id int64, updates map[string]interface{}) error
	GenerateQuoteNumber(ctx context.Context, year int) (string, error)
	ListExpiryCandidates(ctx context.Context, asOf time.Time) ([]Quote, error)
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

const quoteColumns = `q.id, q.number, q.client_id, c.company_name, q.currency, q.issue_date, q.valid_until,
q.subtotal, q.tax_amount, q.total, q.status, q.sent_at, q.accepted_at, q.refused_at,
q.refuse_reason, q.invoice_id, q.notes, q.created_by, q.created_at, q.updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.Number, &q.ClientID, &q.ClientName, &q.Currency, &q.IssueDate,
		&q.ValidUntil, &q.Subtotal, &q.TaxAmount, &q.Total, &q.Status, &q.SentAt, &q.AcceptedAt,
		&q.RefusedAt, &q.RefuseReason, &q.InvoiceID, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	return scanQuote(r.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM quotes q JOIN clients c ON c.id = q.client_id WHERE q.id = $1`, quoteColumns), id))
}

func (r *repository) ListQuotes(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("q.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.IssuedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("q.issue_date >= $%d", argPos))
		args = append(args, *req.IssuedFrom)
		argPos++
	}
	if req.IssuedTo != nil {
		conditions = append(conditions, fmt.Sprintf("q.issue_date <= $%d", argPos))
		args = append(args, *req.IssuedTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM quotes q %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM quotes q JOIN clients c ON c.id = q.client_id %s
ORDER BY q.issue_date DESC, q.id DESC LIMIT $%d OFFSET $%d`, quoteColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) ListQuoteLines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, quote_id, kind, description, quantity, unit_price, tax_rate,
discount_percent, discount_amount, purchase_price, line_order, created_at
FROM quote_lines WHERE quote_id = $1 ORDER BY line_order, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuoteLine
	for rows.Next() {
		var l QuoteLine
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.Kind, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.TaxRate, &l.DiscountPercent, &l.DiscountAmount, &l.PurchasePrice, &l.LineOrder, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) CreateQuote(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quotes
(number, client_id, currency, issue_date, valid_until, subtotal, tax_amount, total, status, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now()) RETURNING id`,
		q.Number, q.ClientID, q.Currency, q.IssueDate, q.ValidUntil, q.Subtotal,
		q.TaxAmount, q.Total, q.Status, q.Notes, q.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) CreateQuoteLine(ctx context.Context, quoteID int64, l QuoteLine) error {
	_, err := r.db.Exec(ctx, `INSERT INTO quote_lines
(quote_id, kind, description, quantity, unit_price, tax_rate, discount_percent, discount_amount, purchase_price, line_order, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())`,
		quoteID, l.Kind, l.Description, l.Quantity, l.UnitPrice, l.TaxRate,
		l.DiscountPercent, l.DiscountAmount, l.PurchasePrice, l.LineOrder)
	return err
}

func (r *repository) DeleteQuoteLines(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, quoteID)
	return err
}

func (r *repository) UpdateQuote(ctx context.Context, id int64, updates map[string]interface{}) error {
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
		fmt.Sprintf("UPDATE quotes SET %s, updated_at = now() WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// GenerateQuoteNumber reserves the next DEV-YYYY-NNNN number.
func (r *repository) GenerateQuoteNumber(ctx context.Context, year int) (string, error) {
	name := fmt.Sprintf("quote-%d", year)
	var n int64
	err := r.db.QueryRow(ctx, `INSERT INTO number_sequences (name, current)
VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET current = number_sequences.current + 1
RETURNING current`, name).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DEV-%d-%04d", year, n), nil
}

func (r *repository) ListExpiryCandidates(ctx context.Context, asOf time.Time) ([]Quote, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM quotes q JOIN clients c ON c.id = q.client_id
WHERE q.status = $1 AND q.valid_until < $2 ORDER BY q.valid_until`, quoteColumns),
		QuoteStatusSent, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}
