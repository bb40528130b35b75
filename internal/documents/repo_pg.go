package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docchaser/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const itemColumns = `id, chaser_id, name, description, status, item_order, notes, received_at, created_at, updated_at`

// CreateItems inserts all items in one transaction.
func (r *PGRepo) CreateItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	const query = `
INSERT INTO document_items (` + itemColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	return db.WithTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, query,
				it.ID,
				it.CaseID,
				it.Name,
				nullString(it.Description),
				it.Status,
				it.Order,
				nullString(it.Notes),
				it.ReceivedAt,
				it.CreatedAt,
				it.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert document item: %w", err)
			}
		}
		return nil
	})
}

// ListByCase returns the items of a case in display order.
func (r *PGRepo) ListByCase(ctx context.Context, caseID string) ([]Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM document_items WHERE chaser_id = $1 ORDER BY item_order, created_at`
	rows, err := r.DB.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItem applies a partial update to one item of a case.
func (r *PGRepo) UpdateItem(ctx context.Context, caseID, itemID string, upd Update) (Item, error) {
	var out Item
	err := db.WithTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		const selectQuery = `SELECT ` + itemColumns + ` FROM document_items WHERE id = $1 AND chaser_id = $2 FOR UPDATE`
		it, err := scanItem(tx.QueryRowContext(ctx, selectQuery, itemID, caseID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		it.apply(upd)

		const updateQuery = `
UPDATE document_items
SET status = $1, notes = $2, received_at = $3, updated_at = $4
WHERE id = $5`
		if _, err := tx.ExecContext(ctx, updateQuery, it.Status, nullString(it.Notes), it.ReceivedAt, it.UpdatedAt, it.ID); err != nil {
			return fmt.Errorf("update document item: %w", err)
		}
		out = it
		return nil
	})
	return out, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var it Item
	var description, notes sql.NullString
	var receivedAt sql.NullTime
	if err := row.Scan(
		&it.ID,
		&it.CaseID,
		&it.Name,
		&description,
		&it.Status,
		&it.Order,
		&notes,
		&receivedAt,
		&it.CreatedAt,
		&it.UpdatedAt,
	); err != nil {
		return Item{}, err
	}
	it.Description = description.String
	it.Notes = notes.String
	if receivedAt.Valid {
		t := receivedAt.Time
		it.ReceivedAt = &t
	}
	return it, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
