package chasers

import (
	"context"
	"time"
)

// Repo defines persistence operations for cases and attempts.
type Repo interface {
	CreateCase(ctx context.Context, c Case) error
	GetCase(ctx context.Context, id string) (Case, error)
	ListCases(ctx context.Context) ([]Case, error)
	DeleteCase(ctx context.Context, id string) error
	UpdateCaseStatus(ctx context.Context, id, status string, at time.Time) (Case, error)

	// ListDue returns pending attempts scheduled at or before now whose case
	// is not terminal, ordered by case id then attempt number.
	ListDue(ctx context.Context, now time.Time) ([]Due, error)
	GetAttempt(ctx context.Context, caseID string, number int) (Attempt, error)
	FindAttemptByProviderID(ctx context.Context, messageID string) (Attempt, error)
	SaveAttemptContent(ctx context.Context, attemptID, subject, content string) error
	// MarkAttemptSent records a send and advances the case in one step. It
	// returns ErrNotPending if the attempt was already processed.
	MarkAttemptSent(ctx context.Context, attemptID string, upd SentUpdate) (Case, error)
	RecordAttemptFailure(ctx context.Context, attemptID, message string, at time.Time) error
	MarkAttemptDelivered(ctx context.Context, attemptID string, at time.Time) error
	RecordEngagement(ctx context.Context, attemptID, kind string, at time.Time) error
	RecordResponse(ctx context.Context, attemptID string, at time.Time) (Case, error)
}
