package customers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var customerColumns = []string{"id", "email", "name", "phone", "company", "notes", "created_at", "updated_at", "count"}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO customers").
		WithArgs("c1", "ana@example.com", "Ana", nil, nil, nil, now, now).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), Customer{ID: "c1", Email: "ana@example.com", Name: "Ana", CreatedAt: now, UpdatedAt: now})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestPGRepoUpsertReturnsStoredRow(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("ON CONFLICT \\(email\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("WHERE lower\\(c.email\\) = lower\\(\\$1\\)").
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(customerColumns).
			AddRow("existing", "ana@example.com", "Ana Lee", nil, "Lee Ltd", nil, now, now, 3))

	c, err := repo.Upsert(context.Background(), Customer{ID: "c1", Email: "ana@example.com", Name: "Ana", CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if c.ID != "existing" || c.Company != "Lee Ltd" || c.ChaserCount != 3 {
		t.Fatalf("unexpected customer: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("WHERE c.id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(customerColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
