package customers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectCustomer = `
SELECT c.id, c.email, c.name, c.phone, c.company, c.notes, c.created_at, c.updated_at,
       (SELECT count(*) FROM chasers ch WHERE ch.customer_id = c.id)
FROM customers c`

// Create inserts a customer. A unique violation on email maps to
// ErrDuplicateEmail.
func (r *PGRepo) Create(ctx context.Context, c Customer) error {
	const query = `
INSERT INTO customers (id, email, name, phone, company, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		c.ID,
		c.Email,
		c.Name,
		nullableString(c.Phone),
		nullableString(c.Company),
		nullableString(c.Notes),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// Upsert inserts c unless its email exists and returns the stored row.
func (r *PGRepo) Upsert(ctx context.Context, c Customer) (Customer, error) {
	const query = `
INSERT INTO customers (id, email, name, phone, company, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (email) DO NOTHING`
	if _, err := r.DB.ExecContext(ctx, query,
		c.ID,
		c.Email,
		c.Name,
		nullableString(c.Phone),
		nullableString(c.Company),
		nullableString(c.Notes),
		c.CreatedAt,
		c.UpdatedAt,
	); err != nil {
		return Customer{}, err
	}
	return r.GetByEmail(ctx, c.Email)
}

// GetByID returns a customer by id.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Customer, error) {
	return scanCustomer(r.DB.QueryRowContext(ctx, selectCustomer+` WHERE c.id = $1`, id))
}

// GetByEmail returns a customer by email, ignoring case.
func (r *PGRepo) GetByEmail(ctx context.Context, email string) (Customer, error) {
	return scanCustomer(r.DB.QueryRowContext(ctx, selectCustomer+` WHERE lower(c.email) = lower($1)`, email))
}

// List returns all customers, newest first.
func (r *PGRepo) List(ctx context.Context) ([]Customer, error) {
	rows, err := r.DB.QueryContext(ctx, selectCustomer+` ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	var phone, company, notes sql.NullString
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.Name,
		&phone,
		&company,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ChaserCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	c.Phone = phone.String
	c.Company = company.String
	c.Notes = notes.String
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
