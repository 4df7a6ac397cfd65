package clients

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
	ErrNotFound      = errors.New("client not found")
	ErrAlreadyExists = errors.New("client already exists")
)

// Repository persists clients.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Client, error)
	GetByProspect(ctx context.Context, prospectID int64) (*Client, error)
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Create(ctx context.Context, client Client) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	GenerateCode(ctx context.Context) (string, error)
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

const clientColumns = `id, code, company_name, contact_name, email, phone, siret, vat_number,
payment_terms_days, address_line, postal_code, city, country, latitude, longitude,
is_active, notes, prospect_id, created_by, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Code, &c.CompanyName, &c.ContactName, &c.Email, &c.Phone,
		&c.SIRET, &c.VATNumber, &c.PaymentTermsDays, &c.AddressLine, &c.PostalCode,
		&c.City, &c.Country, &c.Latitude, &c.Longitude, &c.IsActive, &c.Notes,
		&c.ProspectID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	return scanClient(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM clients WHERE id = $1`, clientColumns), id))
}

func (r *repository) GetByProspect(ctx context.Context, prospectID int64) (*Client, error) {
	return scanClient(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM clients WHERE prospect_id = $1`, clientColumns), prospectID))
}

func (r *repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		pattern := "%" + *req.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR company_name ILIKE $%d OR email ILIKE $%d OR city ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM clients %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM clients %s ORDER BY code LIMIT $%d OFFSET $%d`,
		clientColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, c Client) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO clients
(code, company_name, contact_name, email, phone, siret, vat_number, payment_terms_days,
 address_line, postal_code, city, country, latitude, longitude, is_active, notes,
 prospect_id, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
RETURNING id`,
		c.Code, c.CompanyName, c.ContactName, c.Email, c.Phone, c.SIRET, c.VATNumber,
		c.PaymentTermsDays, c.AddressLine, c.PostalCode, c.City, c.Country,
		c.Latitude, c.Longitude, c.IsActive, c.Notes, c.ProspectID, c.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
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
		fmt.Sprintf("UPDATE clients SET %s, updated_at = now() WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateCode reserves the next CLI-NNNN code from a sequence table.
func (r *repository) GenerateCode(ctx context.Context) (string, error) {
	var n int64
	err := r.db.QueryRow(ctx, `INSERT INTO number_sequences (name, current)
VALUES ('client', 1)
ON CONFLICT (name) DO UPDATE SET current = number_sequences.current + 1
RETURNING current`).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CLI-%04d", n), nil
}
