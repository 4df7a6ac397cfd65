package expenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrExpenseNotFound = errors.New("expense not found")

// Repository persists expenses.
type Repository interface {
	Get(ctx context.Context, id int64) (*Expense, error)
	List(ctx context.Context, req ListExpensesRequest) ([]Expense, int, error)
	Create(ctx context.Context, e Expense) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	MonthlySummary(ctx context.Context, year, month int) (*MonthlySummary, error)
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

const expenseColumns = `id, expense_date, merchant, category, amount_ht, vat_rate, vat_amount, total_ttc,
receipt_ref, status, notes, approved_at, approved_by, reject_reason, created_by, created_at, updated_at`

func scanExpense(row pgx.Row) (*Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.ExpenseDate, &e.Merchant, &e.Category, &e.AmountHT, &e.VATRate,
		&e.VATAmount, &e.TotalTTC, &e.ReceiptRef, &e.Status, &e.Notes, &e.ApprovedAt,
		&e.ApprovedBy, &e.RejectReason, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Expense, error) {
	return scanExpense(r.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM expenses WHERE id = $1`, expenseColumns), id))
}

func (r *repository) List(ctx context.Context, req ListExpensesRequest) ([]Expense, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, *req.Category)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("expense_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("expense_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM expenses %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM expenses %s ORDER BY expense_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		expenseColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO expenses
(expense_date, merchant, category, amount_ht, vat_rate, vat_amount, total_ttc, receipt_ref, status, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now()) RETURNING id`,
		e.ExpenseDate, e.Merchant, e.Category, e.AmountHT, e.VATRate, e.VATAmount,
		e.TotalTTC, e.ReceiptRef, e.Status, e.Notes, e.CreatedBy).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
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
		fmt.Sprintf("UPDATE expenses SET %s, updated_at = now() WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// MonthlySummary aggregates submitted and approved expenses per category
// for the given month.
func (r *repository) MonthlySummary(ctx context.Context, year, month int) (*MonthlySummary, error) {
	rows, err := r.db.Query(ctx, `SELECT category, COUNT(*), COALESCE(SUM(amount_ht),0), COALESCE(SUM(total_ttc),0)
FROM expenses
WHERE status IN ($1, $2)
  AND EXTRACT(YEAR FROM expense_date) = $3
  AND EXTRACT(MONTH FROM expense_date) = $4
GROUP BY category
ORDER BY category`, ExpenseStatusSubmitted, ExpenseStatusApproved, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &MonthlySummary{Year: year, Month: month}
	for rows.Next() {
		var c CategorySummary
		if err := rows.Scan(&c.Category, &c.Count, &c.TotalHT, &c.TotalTTC); err != nil {
			return nil, err
		}
		summary.Categories = append(summary.Categories, c)
		summary.TotalHT += c.TotalHT
		summary.TotalTTC += c.TotalTTC
	}
	return summary, rows.Err()
}
