package chasers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchaser/internal/content"
	"docchaser/internal/events"
	"docchaser/internal/schedule"
	"docchaser/internal/shared/telemetry"
	"docchaser/internal/timing"
)

// CustomerDirectory links cases to directory entries.
type CustomerDirectory interface {
	FindOrCreate(ctx context.Context, name, email, phone string) (string, error)
}

// DocumentTracker stores the segmented document items of a case.
type DocumentTracker interface {
	TrackDocuments(ctx context.Context, caseID, documents string) error
}

// AttemptSender sends one attempt outside the dispatch loop.
type AttemptSender interface {
	SendAttempt(ctx context.Context, caseID string, number int) error
}

// Service coordinates case creation and lifecycle updates.
type Service struct {
	Repo              Repo
	Schedules         *schedule.Generator
	Resolver          *content.Resolver
	Customers         CustomerDirectory
	Documents         DocumentTracker
	Sender            AttemptSender
	Events            events.Publisher
	DefaultPreference string
	Now               func() time.Time
}

// NewService constructs a Service with the required collaborators. Optional
// collaborators are set on the returned value.
func NewService(repo Repo, schedules *schedule.Generator, resolver *content.Resolver) *Service {
	return &Service{
		Repo:              repo,
		Schedules:         schedules,
		Resolver:          resolver,
		Events:            events.Noop{},
		DefaultPreference: "Email",
		Now:               time.Now,
	}
}

// CreateInput is the data needed to open a case.
type CreateInput struct {
	Task              string
	Documents         string
	Who               string
	Urgency           string
	ContactEmail      string
	ContactPhone      string
	ChannelPreference string
}

func (in CreateInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Task) == "" {
		missing = append(missing, "task")
	}
	if strings.TrimSpace(in.Documents) == "" {
		missing = append(missing, "documents")
	}
	if strings.TrimSpace(in.Who) == "" {
		missing = append(missing, "who")
	}
	if strings.TrimSpace(in.Urgency) == "" {
		missing = append(missing, "urgency")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Create validates input, generates the schedule, resolves attempt 1 and
// persists the case. When attempt 1 is an email that is already due it is
// sent before returning; a failed send is left for the dispatch loop.
func (s *Service) Create(ctx context.Context, in CreateInput) (Case, error) {
	if err := in.validate(); err != nil {
		return Case{}, err
	}
	now := s.now()
	pref := strings.TrimSpace(in.ChannelPreference)
	if pref == "" {
		pref = s.DefaultPreference
	}

	c := Case{
		ID:                uuid.NewString(),
		Task:              strings.TrimSpace(in.Task),
		Documents:         strings.TrimSpace(in.Documents),
		Who:               strings.TrimSpace(in.Who),
		ContactName:       strings.TrimSpace(in.Who),
		ContactEmail:      strings.TrimSpace(in.ContactEmail),
		ContactPhone:      strings.TrimSpace(in.ContactPhone),
		Urgency:           strings.TrimSpace(in.Urgency),
		ChannelPreference: pref,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if c.ContactEmail == "" && strings.Contains(c.Who, "@") {
		c.ContactEmail = c.Who
	}

	for _, slot := range s.Schedules.Generate(c.ID, c.Urgency, pref, c.Documents, now) {
		c.Attempts = append(c.Attempts, Attempt{
			ID:           uuid.NewString(),
			CaseID:       c.ID,
			Number:       slot.Number,
			Channel:      slot.Channel,
			ScheduledFor: slot.ScheduledFor,
			Status:       AttemptPending,
			TemplateID:   slot.TemplateID,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	c.MaxAttempts = len(c.Attempts)
	if c.MaxAttempts == 0 {
		c.Status = StatusCompleted
		c.CompletedAt = &now
	} else {
		c.Status = StatusScheduled
		c.NextOutreachAt = schedule.NextDue(c.Attempts)
		s.resolveFirst(ctx, &c)
	}

	if s.Customers != nil && c.ContactEmail != "" {
		id, err := s.Customers.FindOrCreate(ctx, c.ContactName, c.ContactEmail, c.ContactPhone)
		if err != nil {
			telemetry.Warn("chasers.customer.link_failed", map[string]any{"chaser_id": c.ID, "error": err})
		} else {
			c.CustomerID = id
		}
	}

	if err := s.Repo.CreateCase(ctx, c); err != nil {
		return Case{}, fmt.Errorf("create chaser: %w", err)
	}
	telemetry.Info("chasers.created", map[string]any{
		"chaser_id":    c.ID,
		"urgency":      c.Urgency,
		"preference":   pref,
		"max_attempts": c.MaxAttempts,
	})

	if s.Documents != nil {
		if err := s.Documents.TrackDocuments(ctx, c.ID, c.Documents); err != nil {
			telemetry.Warn("chasers.documents.track_failed", map[string]any{"chaser_id": c.ID, "error": err})
		}
	}

	if s.sendFirstNow(ctx, c, now) {
		if fresh, err := s.Repo.GetCase(ctx, c.ID); err == nil {
			c = fresh
		}
	}
	return c, nil
}

func (s *Service) resolveFirst(ctx context.Context, c *Case) {
	if s.Resolver == nil {
		return
	}
	first := &c.Attempts[0]
	out, err := s.Resolver.Resolve(ctx, content.Input{
		ContactName:   c.ContactName,
		ContactEmail:  c.ContactEmail,
		Task:          c.Task,
		Documents:     c.Documents,
		Urgency:       c.Urgency,
		AttemptNumber: first.Number,
		Channel:       first.Channel,
		TemplateID:    first.TemplateID,
		Role:          schedule.RoleInitial,
	})
	if err != nil {
		telemetry.Warn("chasers.first_attempt.resolve_failed", map[string]any{"chaser_id": c.ID, "error": err})
		return
	}
	first.Subject = out.Subject
	first.Content = out.Content
}

func (s *Service) sendFirstNow(ctx context.Context, c Case, now time.Time) bool {
	if s.Sender == nil || len(c.Attempts) == 0 {
		return false
	}
	first := c.Attempts[0]
	if first.Channel != timing.ChannelEmail || first.ScheduledFor.After(now) {
		return false
	}
	if err := s.Sender.SendAttempt(ctx, c.ID, first.Number); err != nil {
		telemetry.Warn("chasers.first_attempt.send_failed", map[string]any{"chaser_id": c.ID, "error": err})
	}
	return true
}

// Get returns a case with its attempts.
func (s *Service) Get(ctx context.Context, id string) (Case, error) {
	return s.Repo.GetCase(ctx, id)
}

// List returns all cases, newest first.
func (s *Service) List(ctx context.Context) ([]Case, error) {
	return s.Repo.ListCases(ctx)
}

// Delete removes a case with its attempts and document items.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Repo.DeleteCase(ctx, id); err != nil {
		return err
	}
	if f, ok := s.Documents.(interface {
		ForgetCase(ctx context.Context, caseID string)
	}); ok {
		f.ForgetCase(ctx, id)
	}
	telemetry.Info("chasers.deleted", map[string]any{"chaser_id": id})
	return nil
}

var settableStatuses = map[string]struct{}{
	StatusScheduled:  {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// UpdateStatus sets the case status from an operator request.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Case, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := settableStatuses[status]; !ok {
		return Case{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	c, err := s.Repo.UpdateCaseStatus(ctx, id, status, s.now())
	if err != nil {
		return Case{}, err
	}
	if status == StatusCompleted {
		s.publish(ctx, events.Event{Type: events.TypeCaseCompleted, CaseID: id, OccurredAt: s.now()})
	}
	return c, nil
}

// Webhook event types.
const (
	WebhookReply     = "reply"
	WebhookDelivered = "delivered"
	WebhookOpened    = "opened"
	WebhookClicked   = "clicked"
)

// WebhookEvent is a provider or operator notification about an attempt.
type WebhookEvent struct {
	Type          string
	CaseID        string
	AttemptNumber int
	MessageID     string
	At            time.Time
}

// HandleWebhook applies a webhook event to the attempt it refers to.
func (s *Service) HandleWebhook(ctx context.Context, ev WebhookEvent) (Attempt, error) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	a, err := s.findWebhookAttempt(ctx, ev)
	if err != nil {
		return Attempt{}, err
	}

	switch strings.ToLower(ev.Type) {
	case WebhookReply:
		c, err := s.Repo.RecordResponse(ctx, a.ID, ev.At)
		if err != nil {
			return Attempt{}, err
		}
		telemetry.Info("chasers.response.recorded", map[string]any{"chaser_id": c.ID, "attempt": a.Number})
		s.publish(ctx, events.Event{Type: events.TypeCaseResponded, CaseID: c.ID, AttemptID: a.ID, AttemptNumber: a.Number, Channel: a.Channel, OccurredAt: ev.At})
	case WebhookDelivered:
		err = s.Repo.MarkAttemptDelivered(ctx, a.ID, ev.At)
	case WebhookOpened:
		err = s.Repo.RecordEngagement(ctx, a.ID, EngagementOpened, ev.At)
	case WebhookClicked:
		err = s.Repo.RecordEngagement(ctx, a.ID, EngagementClicked, ev.At)
	default:
		return Attempt{}, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, ev.Type)
	}
	if err != nil {
		return Attempt{}, err
	}
	return s.Repo.GetAttempt(ctx, a.CaseID, a.Number)
}

// RecordResponse marks attempt number of a case as answered and closes the
// case. Remaining pending attempts are never dispatched afterwards.
func (s *Service) RecordResponse(ctx context.Context, caseID string, number int) (Case, error) {
	if _, err := s.HandleWebhook(ctx, WebhookEvent{Type: WebhookReply, CaseID: caseID, AttemptNumber: number}); err != nil {
		return Case{}, err
	}
	return s.Repo.GetCase(ctx, caseID)
}

func (s *Service) findWebhookAttempt(ctx context.Context, ev WebhookEvent) (Attempt, error) {
	switch {
	case ev.CaseID != "" && ev.AttemptNumber > 0:
		return s.Repo.GetAttempt(ctx, ev.CaseID, ev.AttemptNumber)
	case strings.TrimSpace(ev.MessageID) != "":
		return s.Repo.FindAttemptByProviderID(ctx, ev.MessageID)
	case ev.CaseID != "":
		c, err := s.Repo.GetCase(ctx, ev.CaseID)
		if err != nil {
			return Attempt{}, err
		}
		return latestTouched(c)
	default:
		return Attempt{}, fmt.Errorf("%w: chaserId with attemptNumber, or messageId, is required", ErrInvalidInput)
	}
}

// latestTouched returns the most recent non-pending attempt, or the first
// attempt when none has gone out yet.
func latestTouched(c Case) (Attempt, error) {
	if len(c.Attempts) == 0 {
		return Attempt{}, ErrNotFound
	}
	for i := len(c.Attempts) - 1; i >= 0; i-- {
		if c.Attempts[i].Status != AttemptPending {
			return c.Attempts[i], nil
		}
	}
	return c.Attempts[0], nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		telemetry.Warn("events.publish_failed", map[string]any{"type": ev.Type, "chaser_id": ev.CaseID, "error": err})
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
