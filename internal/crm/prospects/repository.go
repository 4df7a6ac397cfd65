package prospects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom-app/gescom/internal/platform/db"
)

var ErrNotFound = errors.New("prospect not found")

// Repository persists prospects.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Prospect, error)
	List(ctx context.Context, req ListProspectsRequest) ([]Prospect, int, error)
	Create(ctx context.Context, p Prospect) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	FindMatches(ctx context.Context, email, phone, siret string) ([]DuplicateMatch, error)
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

const prospectColumns = `id, company_name, contact_name, email, phone, siret, source, status,
address_line, postal_code, city, latitude, longitude, notes, converted_client_id,
created_by, created_at, updated_at`

func scanProspect(row pgx.Row) (*Prospect, error) {
	var p Prospect
	err := row.Scan(&p.ID, &p.CompanyName, &p.ContactName, &p.Email, &p.Phone, &p.SIRET,
		&p.Source, &p.Status, &p.AddressLine, &p.PostalCode, &p.City, &p.Latitude,
		&p.Longitude, &p.Notes, &p.ConvertedClientID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Prospect, error) {
	return scanProspect(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM prospects WHERE id = $1`, prospectColumns), id))
}

func (r *repository) List(ctx context.Context, req ListProspectsRequest) ([]Prospect, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		pattern := "%" + *req.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR contact_name ILIKE $%d OR email ILIKE $%d OR city ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM prospects %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM prospects %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		prospectColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repository) Create(ctx context.Context, p Prospect) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO prospects
(company_name, contact_name, email, phone, siret, source, status, address_line,
 postal_code, city, latitude, longitude, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
RETURNING id`,
		p.CompanyName, p.ContactName, p.Email, p.Phone, p.SIRET, p.Source, p.Status,
		p.AddressLine, p.PostalCode, p.City, p.Latitude, p.Longitude, p.Notes, p.CreatedBy).Scan(&id)
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
		fmt.Sprintf("UPDATE prospects SET %s, updated_at = now() WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindMatches returns prospects sharing a normalized email, phone or
// SIRET with the given values. Empty values are skipped.
func (r *repository) FindMatches(ctx context.Context, email, phone, siret string) ([]DuplicateMatch, error) {
	var out []DuplicateMatch
	type probe struct {
		field, query, value string
	}
	probes := []probe{
		{"email", fmt.Sprintf(`SELECT %s FROM prospects WHERE lower(email) = lower($1)`, prospectColumns), email},
		{"phone", fmt.Sprintf(`SELECT %s FROM prospects WHERE regexp_replace(phone, '[^0-9+]', '', 'g') = $1`, prospectColumns), phone},
		{"siret", fmt.Sprintf(`SELECT %s FROM prospects WHERE siret = $1`, prospectColumns), siret},
	}
	seen := make(map[int64]bool)
	for _, pr := range probes {
		if pr.value == "" {
			continue
		}
		rows, err := r.db.Query(ctx, pr.query, pr.value)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			p, err := scanProspect(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, DuplicateMatch{Prospect: *p, Field: pr.field})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}
