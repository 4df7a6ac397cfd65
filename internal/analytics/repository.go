package analytics

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonthRevenue is one month's invoiced and collected revenue.
type MonthRevenue struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Invoiced  float64 `json:"invoiced"`
	Collected float64 `json:"collected"`
}

// CategoryExpense is one category's expense total for the period.
type CategoryExpense struct {
	Category string  `json:"category"`
	TotalTTC float64 `json:"total_ttc"`
}

// QuoteFunnel counts quotes by outcome over the period.
type QuoteFunnel struct {
	Sent     int `json:"sent"`
	Accepted int `json:"accepted"`
	Refused  int `json:"refused"`
	Expired  int `json:"expired"`
}

// Repository reads aggregate figures straight from SQL.
type Repository interface {
	MonthlyRevenue(ctx context.Context, year int) ([]MonthRevenue, error)
	OutstandingReceivables(ctx context.Context) (float64, error)
	OverdueCount(ctx context.Context) (int, error)
	ExpensesByCategory(ctx context.Context, year int) ([]CategoryExpense, error)
	QuoteFunnel(ctx context.Context, year int) (*QuoteFunnel, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a Repository over the pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// MonthlyRevenue sums sent and paid invoices by issue month, plus the
// payments actually received that month.
func (r *repository) MonthlyRevenue(ctx context.Context, year int) ([]MonthRevenue, error) {
	rows, err := r.db.Query(ctx, `SELECT m.month, COALESCE(i.invoiced, 0), COALESCE(p.collected, 0)
FROM generate_series(1, 12) AS m(month)
LEFT JOIN (
    SELECT EXTRACT(MONTH FROM issue_date)::int AS month, SUM(total) AS invoiced
    FROM invoices
    WHERE status IN ('SENT', 'PAID') AND EXTRACT(YEAR FROM issue_date) = $1
    GROUP BY 1
) i ON i.month = m.month
LEFT JOIN (
    SELECT EXTRACT(MONTH FROM paid_at)::int AS month, SUM(amount) AS collected
    FROM payments
    WHERE EXTRACT(YEAR FROM paid_at) = $1
    GROUP BY 1
) p ON p.month = m.month
ORDER BY m.month`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthRevenue
	for rows.Next() {
		mr := MonthRevenue{Year: year}
		if err := rows.Scan(&mr.Month, &mr.Invoiced, &mr.Collected); err != nil {
			return nil, err
		}
		out = append(out, mr)
	}
	return out, rows.Err()
}

// OutstandingReceivables returns the unpaid remainder of sent invoices.
func (r *repository) OutstandingReceivables(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(i.total - COALESCE(p.paid, 0)), 0)
FROM invoices i
LEFT JOIN (
    SELECT invoice_id, SUM(amount) AS paid FROM payments GROUP BY invoice_id
) p ON p.invoice_id = i.id
WHERE i.status = 'SENT'`).Scan(&total)
	return total, err
}

func (r *repository) OverdueCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE status = 'SENT' AND is_overdue`).Scan(&n)
	return n, err
}

func (r *repository) ExpensesByCategory(ctx context.Context, year int) ([]CategoryExpense, error) {
	rows, err := r.db.Query(ctx, `SELECT category, COALESCE(SUM(total_ttc), 0)
FROM expenses
WHERE status IN ('SUBMITTED', 'APPROVED') AND EXTRACT(YEAR FROM expense_date) = $1
GROUP BY category ORDER BY category`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryExpense
	for rows.Next() {
		var c CategoryExpense
		if err := rows.Scan(&c.Category, &c.TotalTTC); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// QuoteFunnel counts quotes issued in the year that left DRAFT, by
// outcome. ACCEPTED and REFUSED quotes also passed through SENT, so Sent
// counts every issued quote.
func (r *repository) QuoteFunnel(ctx context.Context, year int) (*QuoteFunnel, error) {
	var f QuoteFunnel
	err := r.db.QueryRow(ctx, `SELECT
COUNT(*) FILTER (WHERE status <> 'DRAFT'),
COUNT(*) FILTER (WHERE status = 'ACCEPTED'),
COUNT(*) FILTER (WHERE status = 'REFUSED'),
COUNT(*) FILTER (WHERE status = 'EXPIRED')
FROM quotes WHERE EXTRACT(YEAR FROM issue_date) = $1`, year).
		Scan(&f.Sent, &f.Accepted, &f.Refused, &f.Expired)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
