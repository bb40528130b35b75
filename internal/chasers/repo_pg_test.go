package chasers

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func columnNames(cols string) []string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

var pgNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func caseValues(id, status string, current, max int) []driver.Value {
	return []driver.Value{
		id, "2024 tax return", "W-2", "Ana Lee", "Medium", "Email", "Ana Lee",
		"ana@example.com", nil, nil, status, current, max,
		pgNow, nil, nil, pgNow, pgNow,
	}
}

func attemptValues(id, caseID string, number int, status string, scheduled time.Time, messageID any) []driver.Value {
	return []driver.Value{
		id, caseID, number, "email", scheduled, status, "", "", "attempt_1_email",
		nil, nil, false, messageID, nil, []byte(`{"failureCount":2}`), pgNow, pgNow,
	}
}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateCaseInsertsAttemptsInTx(t *testing.T) {
	repo, mock := newMock(t)
	c := Case{
		ID: "case-1", Task: "audit", Documents: "W-2", Who: "Ana", ContactName: "Ana",
		Urgency: "Medium", ChannelPreference: "Email", Status: StatusScheduled, MaxAttempts: 2,
		CreatedAt: pgNow, UpdatedAt: pgNow,
		Attempts: []Attempt{
			{ID: "a1", CaseID: "case-1", Number: 1, Channel: "email", ScheduledFor: pgNow, Status: AttemptPending, TemplateID: "attempt_1_email"},
			{ID: "a2", CaseID: "case-1", Number: 2, Channel: "email", ScheduledFor: pgNow.Add(time.Hour), Status: AttemptPending, TemplateID: "attempt_2_email"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chasers").
		WithArgs("case-1", "audit", "W-2", "Ana", "Medium", "Email", "Ana", nil, nil, nil,
			StatusScheduled, 0, 2, nil, nil, nil, pgNow, pgNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outreach_attempts").
		WithArgs("a1", "case-1", 1, "email", pgNow, AttemptPending, "", "", "attempt_1_email",
			nil, nil, false, nil, nil, "{}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outreach_attempts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateCase(context.Background(), c); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateCaseRollsBackOnAttemptError(t *testing.T) {
	repo, mock := newMock(t)
	c := Case{ID: "case-1", Attempts: []Attempt{{ID: "a1", CaseID: "case-1", Number: 1}}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chasers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outreach_attempts").WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	if err := repo.CreateCase(context.Background(), c); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListDueJoinsNonTerminalCases(t *testing.T) {
	repo, mock := newMock(t)
	cols := append(columnNames(caseColumns), columnNames(attemptColumns)...)
	rows := sqlmock.NewRows(cols).
		AddRow(append(caseValues("case-1", StatusScheduled, 0, 4), attemptValues("a1", "case-1", 1, AttemptPending, pgNow.Add(-time.Hour), nil)...)...).
		AddRow(append(caseValues("case-1", StatusScheduled, 0, 4), attemptValues("a2", "case-1", 2, AttemptPending, pgNow, nil)...)...)

	mock.ExpectQuery(regexp.QuoteMeta("AND c.status NOT IN ('completed', 'failed')")).
		WithArgs(pgNow).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), pgNow)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due attempts, got %d", len(due))
	}
	if due[0].Attempt.Number != 1 || due[1].Attempt.Number != 2 {
		t.Fatalf("unexpected order: %+v", due)
	}
	if due[0].Case.ContactEmail != "ana@example.com" || due[0].Case.ContactPhone != "" {
		t.Fatalf("unexpected case contact: %+v", due[0].Case)
	}
	if due[0].Attempt.Metadata.FailureCount != 2 {
		t.Fatalf("expected metadata decoded, got %+v", due[0].Attempt.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetAttemptNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM outreach_attempts WHERE chaser_id").
		WithArgs("case-1", 3).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetAttempt(context.Background(), "case-1", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func expectLockedCase(mock sqlmock.Sqlmock, status string, attempts ...[]driver.Value) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT chaser_id FROM outreach_attempts").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"chaser_id"}).AddRow("case-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM chasers WHERE id = $1 FOR UPDATE")).
		WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows(columnNames(caseColumns)).AddRow(caseValues("case-1", status, 0, len(attempts))...))
	rows := sqlmock.NewRows(columnNames(attemptColumns))
	for _, a := range attempts {
		rows.AddRow(a...)
	}
	mock.ExpectQuery("FROM outreach_attempts WHERE chaser_id").
		WithArgs("case-1").
		WillReturnRows(rows)
}

func TestPGRepoMarkAttemptSentAdvancesCase(t *testing.T) {
	repo, mock := newMock(t)
	expectLockedCase(mock, StatusScheduled,
		attemptValues("a1", "case-1", 1, AttemptPending, pgNow, nil),
		attemptValues("a2", "case-1", 2, AttemptPending, pgNow.Add(72*time.Hour), nil),
	)
	mock.ExpectExec("UPDATE outreach_attempts").
		WithArgs("a1", AttemptSent, pgNow, false, "<m1@x>", "t1", sqlmock.AnyArg(), pgNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE chasers").
		WithArgs("case-1", StatusInProgress, 1, pgNow.Add(72*time.Hour), nil, nil, pgNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := repo.MarkAttemptSent(context.Background(), "a1", SentUpdate{SentAt: pgNow, MessageID: "<m1@x>", ThreadID: "t1", Threading: ThreadNew})
	if err != nil {
		t.Fatalf("MarkAttemptSent: %v", err)
	}
	if c.Status != StatusInProgress || c.CurrentAttempt != 1 {
		t.Fatalf("unexpected case state: status=%s current=%d", c.Status, c.CurrentAttempt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkAttemptSentCompletesLastAttempt(t *testing.T) {
	repo, mock := newMock(t)
	expectLockedCase(mock, StatusInProgress,
		attemptValues("a1", "case-1", 1, AttemptPending, pgNow, nil),
	)
	mock.ExpectExec("UPDATE outreach_attempts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE chasers").
		WithArgs("case-1", StatusCompleted, 1, nil, pgNow, nil, pgNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := repo.MarkAttemptSent(context.Background(), "a1", SentUpdate{SentAt: pgNow})
	if err != nil {
		t.Fatalf("MarkAttemptSent: %v", err)
	}
	if c.Status != StatusCompleted || c.CompletedAt == nil {
		t.Fatalf("expected completed case, got %+v", c)
	}
}

func TestPGRepoMarkAttemptSentRejectsProcessedAttempt(t *testing.T) {
	repo, mock := newMock(t)
	expectLockedCase(mock, StatusInProgress,
		attemptValues("a1", "case-1", 1, AttemptSent, pgNow, "<m1@x>"),
	)
	mock.ExpectRollback()

	if _, err := repo.MarkAttemptSent(context.Background(), "a1", SentUpdate{SentAt: pgNow}); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecordAttemptFailureIncrementsCount(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("COALESCE((metadata->>'failureCount')::int, 0) + 1")).
		WithArgs("a1", "smtp down", pgNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordAttemptFailure(context.Background(), "a1", "smtp down", pgNow); err != nil {
		t.Fatalf("RecordAttemptFailure: %v", err)
	}

	mock.ExpectExec("UPDATE outreach_attempts").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.RecordAttemptFailure(context.Background(), "missing", "x", pgNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoSaveAttemptContentRequiresPending(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
		WithArgs("a1", "Subject", "Body").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SaveAttemptContent(context.Background(), "a1", "Subject", "Body"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestPGRepoDeleteCase(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("DELETE FROM chasers").WithArgs("case-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM chasers").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteCase(context.Background(), "case-1"); err != nil {
		t.Fatalf("DeleteCase: %v", err)
	}
	if err := repo.DeleteCase(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
