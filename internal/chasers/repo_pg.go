package chasers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docchaser/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const caseColumns = `id, task, documents, who, urgency, channel_preference, contact_name, contact_email, contact_phone,
customer_id, status, current_attempt, max_attempts, next_outreach_at, completed_at, response_received_at, created_at, updated_at`

const attemptColumns = `id, chaser_id, attempt_number, channel, scheduled_for, status, subject, content, template_id,
sent_at, delivered_at, response_received, provider_message_id, provider_thread_id, metadata, created_at, updated_at`

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateCase inserts the case and its attempts in one transaction.
func (r *PGRepo) CreateCase(ctx context.Context, c Case) error {
	const insertCase = `
INSERT INTO chasers (` + caseColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	return db.WithTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertCase,
			c.ID, c.Task, c.Documents, c.Who, c.Urgency, c.ChannelPreference, c.ContactName,
			nullString(c.ContactEmail), nullString(c.ContactPhone), nullString(c.CustomerID),
			c.Status, c.CurrentAttempt, c.MaxAttempts,
			nullTime(c.NextOutreachAt), nullTime(c.CompletedAt), nullTime(c.ResponseReceivedAt),
			c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert chaser: %w", err)
		}
		for _, a := range c.Attempts {
			if err := insertAttempt(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAttempt(ctx context.Context, q queryer, a Attempt) error {
	const query = `
INSERT INTO outreach_attempts (` + attemptColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, query,
		a.ID, a.CaseID, a.Number, a.Channel, a.ScheduledFor, a.Status, a.Subject, a.Content, a.TemplateID,
		nullTime(a.SentAt), nullTime(a.DeliveredAt), a.ResponseReceived,
		nullString(a.ProviderMessageID), nullString(a.ProviderThreadID), string(meta),
		a.CreatedAt, a.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert attempt %d: %w", a.Number, err)
	}
	return nil
}

// GetCase returns a case with its attempts.
func (r *PGRepo) GetCase(ctx context.Context, id string) (Case, error) {
	return getCase(ctx, r.DB, id, false)
}

func getCase(ctx context.Context, q queryer, id string, forUpdate bool) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM chasers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanCase(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, err
	}
	attempts, err := listAttempts(ctx, q, `WHERE chaser_id = $1`, id)
	if err != nil {
		return Case{}, err
	}
	c.Attempts = attempts
	return c, nil
}

func listAttempts(ctx context.Context, q queryer, where string, args ...any) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM outreach_attempts ` + where + ` ORDER BY chaser_id, attempt_number`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListCases returns all cases with their attempts, newest first.
func (r *PGRepo) ListCases(ctx context.Context) ([]Case, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+caseColumns+` FROM chasers ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []Case
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		index[c.ID] = len(cases)
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return cases, nil
	}

	attempts, err := listAttempts(ctx, r.DB, ``)
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		if i, ok := index[a.CaseID]; ok {
			cases[i].Attempts = append(cases[i].Attempts, a)
		}
	}
	return cases, nil
}

// DeleteCase removes a case; attempts and document items cascade.
func (r *PGRepo) DeleteCase(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM chasers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateCaseStatus sets the case status.
func (r *PGRepo) UpdateCaseStatus(ctx context.Context, id, status string, at time.Time) (Case, error) {
	const query = `
UPDATE chasers
SET status = $2,
    completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, $3) ELSE completed_at END,
    updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return Case{}, err
	}
	if err := requireAffected(res); err != nil {
		return Case{}, err
	}
	return r.GetCase(ctx, id)
}

// ListDue returns the due attempts across non-terminal cases.
func (r *PGRepo) ListDue(ctx context.Context, now time.Time) ([]Due, error) {
	query := `
SELECT ` + prefixColumns("c", caseColumns) + `, ` + prefixColumns("a", attemptColumns) + `
FROM outreach_attempts a
JOIN chasers c ON c.id = a.chaser_id
WHERE a.status = 'pending'
  AND a.scheduled_for <= $1
  AND c.status NOT IN ('completed', 'failed')
ORDER BY c.id, a.attempt_number`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Due
	for rows.Next() {
		var c caseRow
		var a attemptRow
		if err := rows.Scan(append(c.dest(), a.dest()...)...); err != nil {
			return nil, err
		}
		att, err := a.attempt()
		if err != nil {
			return nil, err
		}
		out = append(out, Due{Case: c.toCase(), Attempt: att})
	}
	return out, rows.Err()
}

// GetAttempt returns attempt number of a case.
func (r *PGRepo) GetAttempt(ctx context.Context, caseID string, number int) (Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM outreach_attempts WHERE chaser_id = $1 AND attempt_number = $2`
	a, err := scanAttempt(r.DB.QueryRowContext(ctx, query, caseID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

// FindAttemptByProviderID looks an attempt up by its provider message id.
func (r *PGRepo) FindAttemptByProviderID(ctx context.Context, messageID string) (Attempt, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return Attempt{}, ErrNotFound
	}
	query := `SELECT ` + attemptColumns + ` FROM outreach_attempts
WHERE provider_message_id = $1 OR metadata->>'externalId' = $1
LIMIT 1`
	a, err := scanAttempt(r.DB.QueryRowContext(ctx, query, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

// SaveAttemptContent stores resolved content on a pending attempt.
func (r *PGRepo) SaveAttemptContent(ctx context.Context, attemptID, subject, content string) error {
	const query = `
UPDATE outreach_attempts
SET subject = $2, content = $3, updated_at = now()
WHERE id = $1 AND status = 'pending'`
	res, err := r.DB.ExecContext(ctx, query, attemptID, subject, content)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return ErrNotPending
	}
	return nil
}

// MarkAttemptSent records a send and advances the case in one transaction.
func (r *PGRepo) MarkAttemptSent(ctx context.Context, attemptID string, upd SentUpdate) (Case, error) {
	var out Case
	err := r.mutateAttempt(ctx, attemptID, func(c *Case, a *Attempt) error {
		if a.Status != AttemptPending {
			return ErrNotPending
		}
		applySent(c, a, upd, c.Attempts)
		out = *c
		return nil
	})
	return out, err
}

// RecordAttemptFailure stores a send error; the attempt stays pending.
func (r *PGRepo) RecordAttemptFailure(ctx context.Context, attemptID, message string, at time.Time) error {
	const query = `
UPDATE outreach_attempts
SET metadata = metadata || jsonb_build_object(
        'errorMessage', $2::text,
        'lastErrorAt', $3::timestamptz,
        'failureCount', COALESCE((metadata->>'failureCount')::int, 0) + 1),
    updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, attemptID, message, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkAttemptDelivered records a delivery receipt.
func (r *PGRepo) MarkAttemptDelivered(ctx context.Context, attemptID string, at time.Time) error {
	const query = `
UPDATE outreach_attempts
SET status = CASE WHEN status = 'sent' THEN 'delivered' ELSE status END,
    delivered_at = $2,
    updated_at = $2
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, attemptID, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// RecordEngagement stamps an open or click.
func (r *PGRepo) RecordEngagement(ctx context.Context, attemptID, kind string, at time.Time) error {
	var key string
	switch kind {
	case EngagementOpened:
		key = "openedAt"
	case EngagementClicked:
		key = "clickedAt"
	default:
		return ErrInvalidInput
	}
	const query = `
UPDATE outreach_attempts
SET metadata = metadata || jsonb_build_object($2::text, $3::timestamptz),
    updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, attemptID, key, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// RecordResponse marks the attempt responded and completes the case.
func (r *PGRepo) RecordResponse(ctx context.Context, attemptID string, at time.Time) (Case, error) {
	var out Case
	err := r.mutateAttempt(ctx, attemptID, func(c *Case, a *Attempt) error {
		applyResponse(c, a, at)
		out = *c
		return nil
	})
	return out, err
}

// mutateAttempt locks the attempt's case, applies fn and writes both rows back.
func (r *PGRepo) mutateAttempt(ctx context.Context, attemptID string, fn func(c *Case, a *Attempt) error) error {
	return db.WithTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		var caseID string
		err := tx.QueryRowContext(ctx, `SELECT chaser_id FROM outreach_attempts WHERE id = $1`, attemptID).Scan(&caseID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		c, err := getCase(ctx, tx, caseID, true)
		if err != nil {
			return err
		}
		idx := -1
		for i := range c.Attempts {
			if c.Attempts[i].ID == attemptID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		if err := fn(&c, &c.Attempts[idx]); err != nil {
			return err
		}
		if err := updateAttempt(ctx, tx, c.Attempts[idx]); err != nil {
			return err
		}
		return updateCaseProgress(ctx, tx, c)
	})
}

func updateAttempt(ctx context.Context, q queryer, a Attempt) error {
	const query = `
UPDATE outreach_attempts
SET status = $2, sent_at = $3, response_received = $4, provider_message_id = $5,
    provider_thread_id = $6, metadata = $7, updated_at = $8
WHERE id = $1`
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, query, a.ID, a.Status, nullTime(a.SentAt), a.ResponseReceived,
		nullString(a.ProviderMessageID), nullString(a.ProviderThreadID), string(meta), a.UpdatedAt)
	return err
}

func updateCaseProgress(ctx context.Context, q queryer, c Case) error {
	const query = `
UPDATE chasers
SET status = $2, current_attempt = $3, next_outreach_at = $4, completed_at = $5,
    response_received_at = $6, updated_at = $7
WHERE id = $1`
	_, err := q.ExecContext(ctx, query, c.ID, c.Status, c.CurrentAttempt, nullTime(c.NextOutreachAt),
		nullTime(c.CompletedAt), nullTime(c.ResponseReceivedAt), c.UpdatedAt)
	return err
}

type caseRow struct {
	c                  Case
	contactEmail       sql.NullString
	contactPhone       sql.NullString
	customerID         sql.NullString
	nextOutreachAt     sql.NullTime
	completedAt        sql.NullTime
	responseReceivedAt sql.NullTime
}

func (r *caseRow) dest() []any {
	return []any{
		&r.c.ID, &r.c.Task, &r.c.Documents, &r.c.Who, &r.c.Urgency, &r.c.ChannelPreference, &r.c.ContactName,
		&r.contactEmail, &r.contactPhone, &r.customerID, &r.c.Status, &r.c.CurrentAttempt, &r.c.MaxAttempts,
		&r.nextOutreachAt, &r.completedAt, &r.responseReceivedAt, &r.c.CreatedAt, &r.c.UpdatedAt,
	}
}

func (r *caseRow) toCase() Case {
	c := r.c
	c.ContactEmail = r.contactEmail.String
	c.ContactPhone = r.contactPhone.String
	c.CustomerID = r.customerID.String
	c.NextOutreachAt = timePtr(r.nextOutreachAt)
	c.CompletedAt = timePtr(r.completedAt)
	c.ResponseReceivedAt = timePtr(r.responseReceivedAt)
	return c
}

func scanCase(s rowScanner) (Case, error) {
	var r caseRow
	if err := s.Scan(r.dest()...); err != nil {
		return Case{}, err
	}
	return r.toCase(), nil
}

type attemptRow struct {
	a           Attempt
	sentAt      sql.NullTime
	deliveredAt sql.NullTime
	messageID   sql.NullString
	threadID    sql.NullString
	metadata    []byte
}

func (r *attemptRow) dest() []any {
	return []any{
		&r.a.ID, &r.a.CaseID, &r.a.Number, &r.a.Channel, &r.a.ScheduledFor, &r.a.Status, &r.a.Subject,
		&r.a.Content, &r.a.TemplateID, &r.sentAt, &r.deliveredAt, &r.a.ResponseReceived,
		&r.messageID, &r.threadID, &r.metadata, &r.a.CreatedAt, &r.a.UpdatedAt,
	}
}

func (r *attemptRow) attempt() (Attempt, error) {
	a := r.a
	a.SentAt = timePtr(r.sentAt)
	a.DeliveredAt = timePtr(r.deliveredAt)
	a.ProviderMessageID = r.messageID.String
	a.ProviderThreadID = r.threadID.String
	if len(r.metadata) > 0 {
		if err := json.Unmarshal(r.metadata, &a.Metadata); err != nil {
			return Attempt{}, fmt.Errorf("decode attempt metadata: %w", err)
		}
	}
	return a, nil
}

func scanAttempt(s rowScanner) (Attempt, error) {
	var r attemptRow
	if err := s.Scan(r.dest()...); err != nil {
		return Attempt{}, err
	}
	return r.attempt()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
