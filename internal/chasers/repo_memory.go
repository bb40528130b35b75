package chasers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo stores cases in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	cases     map[string]Case
	attempts  map[string][]Attempt
	attemptOf map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		cases:     make(map[string]Case),
		attempts:  make(map[string][]Attempt),
		attemptOf: make(map[string]string),
	}
}

// CreateCase stores the case and its attempts.
func (r *MemoryRepo) CreateCase(ctx context.Context, c Case) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	attempts := append([]Attempt(nil), c.Attempts...)
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].Number < attempts[j].Number })
	for _, a := range attempts {
		r.attemptOf[a.ID] = c.ID
	}
	c.Attempts = nil
	r.cases[c.ID] = c
	r.attempts[c.ID] = attempts
	return nil
}

func (r *MemoryRepo) loadLocked(id string) (Case, bool) {
	c, ok := r.cases[id]
	if !ok {
		return Case{}, false
	}
	c.Attempts = append([]Attempt(nil), r.attempts[id]...)
	return c, true
}

// GetCase returns a case with its attempts.
func (r *MemoryRepo) GetCase(ctx context.Context, id string) (Case, error) {
	if err := ctx.Err(); err != nil {
		return Case{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.loadLocked(id)
	if !ok {
		return Case{}, ErrNotFound
	}
	return c, nil
}

// ListCases returns all cases, newest first.
func (r *MemoryRepo) ListCases(ctx context.Context) ([]Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Case, 0, len(r.cases))
	for id := range r.cases {
		c, _ := r.loadLocked(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteCase removes a case and its attempts.
func (r *MemoryRepo) DeleteCase(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[id]; !ok {
		return ErrNotFound
	}
	for _, a := range r.attempts[id] {
		delete(r.attemptOf, a.ID)
	}
	delete(r.attempts, id)
	delete(r.cases, id)
	return nil
}

// UpdateCaseStatus sets the case status.
func (r *MemoryRepo) UpdateCaseStatus(ctx context.Context, id, status string, at time.Time) (Case, error) {
	if err := ctx.Err(); err != nil {
		return Case{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = at
	if status == StatusCompleted && c.CompletedAt == nil {
		c.CompletedAt = &at
	}
	r.cases[id] = c
	out, _ := r.loadLocked(id)
	return out, nil
}

// ListDue returns the due attempts across non-terminal cases.
func (r *MemoryRepo) ListDue(ctx context.Context, now time.Time) ([]Due, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Due
	for id, c := range r.cases {
		if c.Terminal() {
			continue
		}
		for _, a := range r.attempts[id] {
			if a.Status == AttemptPending && !a.ScheduledFor.After(now) {
				out = append(out, Due{Case: c, Attempt: a})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Case.ID != out[j].Case.ID {
			return out[i].Case.ID < out[j].Case.ID
		}
		return out[i].Attempt.Number < out[j].Attempt.Number
	})
	return out, nil
}

// GetAttempt returns attempt number of a case.
func (r *MemoryRepo) GetAttempt(ctx context.Context, caseID string, number int) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attempts[caseID] {
		if a.Number == number {
			return a, nil
		}
	}
	return Attempt{}, ErrNotFound
}

// FindAttemptByProviderID looks an attempt up by its provider message id.
func (r *MemoryRepo) FindAttemptByProviderID(ctx context.Context, messageID string) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return Attempt{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, list := range r.attempts {
		for _, a := range list {
			if a.ProviderMessageID == messageID || a.Metadata.ExternalID == messageID {
				return a, nil
			}
		}
	}
	return Attempt{}, ErrNotFound
}

// updateAttemptLocked applies fn to the attempt and its case.
func (r *MemoryRepo) updateAttemptLocked(attemptID string, fn func(c *Case, a *Attempt, all []Attempt) error) (Case, error) {
	caseID, ok := r.attemptOf[attemptID]
	if !ok {
		return Case{}, ErrNotFound
	}
	c := r.cases[caseID]
	list := r.attempts[caseID]
	for i := range list {
		if list[i].ID != attemptID {
			continue
		}
		if err := fn(&c, &list[i], list); err != nil {
			return Case{}, err
		}
		r.cases[caseID] = c
		out, _ := r.loadLocked(caseID)
		return out, nil
	}
	return Case{}, ErrNotFound
}

// SaveAttemptContent stores resolved content on a pending attempt.
func (r *MemoryRepo) SaveAttemptContent(ctx context.Context, attemptID, subject, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.updateAttemptLocked(attemptID, func(c *Case, a *Attempt, _ []Attempt) error {
		if a.Status != AttemptPending {
			return ErrNotPending
		}
		a.Subject = subject
		a.Content = content
		a.UpdatedAt = time.Now().UTC()
		return nil
	})
	return err
}

// MarkAttemptSent records a send and advances the case.
func (r *MemoryRepo) MarkAttemptSent(ctx context.Context, attemptID string, upd SentUpdate) (Case, error) {
	if err := ctx.Err(); err != nil {
		return Case{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateAttemptLocked(attemptID, func(c *Case, a *Attempt, all []Attempt) error {
		if a.Status != AttemptPending {
			return ErrNotPending
		}
		applySent(c, a, upd, all)
		return nil
	})
}

// RecordAttemptFailure stores a send error; the attempt stays pending.
func (r *MemoryRepo) RecordAttemptFailure(ctx context.Context, attemptID, message string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.updateAttemptLocked(attemptID, func(c *Case, a *Attempt, _ []Attempt) error {
		a.Metadata.ErrorMessage = message
		a.Metadata.LastErrorAt = &at
		a.Metadata.FailureCount++
		a.UpdatedAt = at
		return nil
	})
	return err
}

// MarkAttemptDelivered records a delivery receipt.
func (r *MemoryRepo) MarkAttemptDelivered(ctx context.Context, attemptID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.updateAttemptLocked(attemptID, func(c *Case, a *Attempt, _ []Attempt) error {
		if a.Status == AttemptSent {
			a.Status = AttemptDelivered
		}
		a.DeliveredAt = &at
		a.UpdatedAt = at
		return nil
	})
	return err
}

// RecordEngagement stamps an open or click.
func (r *MemoryRepo) RecordEngagement(ctx context.Context, attemptID, kind string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.updateAttemptLocked(attemptID, func(c *Case, a *Attempt, _ []Attempt) error {
		switch kind {
		case EngagementOpened:
			a.Metadata.OpenedAt = &at
		case EngagementClicked:
			a.Metadata.ClickedAt = &at
		default:
			return ErrInvalidInput
		}
		a.UpdatedAt = at
		return nil
	})
	return err
}

// RecordResponse marks the attempt responded and completes the case.
func (r *MemoryRepo) RecordResponse(ctx context.Context, attemptID string, at time.Time) (Case, error) {
	if err := ctx.Err(); err != nil {
		return Case{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateAttemptLocked(attemptID, func(c *Case, a *Attempt, _ []Attempt) error {
		applyResponse(c, a, at)
		return nil
	})
}
