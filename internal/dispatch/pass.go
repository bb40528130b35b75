// Package dispatch sends due outreach attempts.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchaser/internal/chasers"
	"docchaser/internal/content"
	"docchaser/internal/events"
	"docchaser/internal/messaging"
	"docchaser/internal/shared/metrics"
	"docchaser/internal/shared/telemetry"
)

// Summary reports the outcome of one pass.
type Summary struct {
	Due        int       `json:"due"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Deferred   int       `json:"deferred"`
	Skipped    int       `json:"skipped"`
	LeaseHeld  bool      `json:"leaseHeld,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeDeferred
	outcomeSkipped
)

// errDeferred marks an attempt left for a later pass.
var errDeferred = errors.New("attempt deferred")

// Dispatcher sends due attempts and records the results.
type Dispatcher struct {
	Repo     chasers.Repo
	Resolver *content.Resolver
	Sender   messaging.Sender
	Linker   Linker
	Events   events.Publisher
	Lease    Lease
	Claims   Claims
	Now      func() time.Time
}

// NewDispatcher constructs a Dispatcher. Events and Lease are optional and
// set on the returned value.
func NewDispatcher(repo chasers.Repo, resolver *content.Resolver, sender messaging.Sender) *Dispatcher {
	return &Dispatcher{
		Repo:     repo,
		Resolver: resolver,
		Sender:   sender,
		Linker:   Linker{Attempts: repo},
		Events:   events.Noop{},
		Claims:   NewMemoryClaims(),
		Now:      time.Now,
	}
}

// RunPass sends every due attempt once. Errors are per attempt and never
// stop the pass.
func (d *Dispatcher) RunPass(ctx context.Context) (sum Summary) {
	sum = Summary{StartedAt: d.now()}
	defer func() {
		sum.FinishedAt = d.now()
		metrics.IncPass()
		metrics.ObservePassDurationMs(float64(sum.FinishedAt.Sub(sum.StartedAt).Milliseconds()))
		telemetry.Info("dispatch.pass.complete", map[string]any{
			"due":         sum.Due,
			"sent":        sum.Sent,
			"failed":      sum.Failed,
			"deferred":    sum.Deferred,
			"skipped":     sum.Skipped,
			"lease_held":  sum.LeaseHeld,
			"duration_ms": sum.FinishedAt.Sub(sum.StartedAt).Milliseconds(),
		})
	}()

	if d.Lease != nil {
		release, err := d.Lease.Acquire(ctx)
		if err != nil {
			if !errors.Is(err, ErrLeaseHeld) {
				telemetry.Warn("dispatch.lease.error", map[string]any{"error": err})
			}
			sum.LeaseHeld = true
			return sum
		}
		defer release()
	}

	due, err := d.Repo.ListDue(ctx, sum.StartedAt)
	if err != nil {
		telemetry.Error("dispatch.list_due.failed", map[string]any{"error": err})
		return sum
	}
	sum.Due = len(due)

	for _, item := range due {
		switch out, _ := d.process(ctx, item); out {
		case outcomeSent:
			sum.Sent++
		case outcomeFailed:
			sum.Failed++
		case outcomeDeferred:
			sum.Deferred++
		default:
			sum.Skipped++
		}
	}
	return sum
}

// SendAttempt sends one attempt outside the loop. It is used for the first
// attempt of a new case. A failed send is recorded like in a pass and also
// returned. It claims the attempt like a pass does, so the two never send the
// same attempt twice.
func (d *Dispatcher) SendAttempt(ctx context.Context, caseID string, number int) error {
	c, err := d.Repo.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	if c.Terminal() {
		return fmt.Errorf("chaser %s is %s: %w", caseID, c.Status, chasers.ErrNotPending)
	}
	for _, a := range c.Attempts {
		if a.Number != number {
			continue
		}
		if a.Status != chasers.AttemptPending {
			return chasers.ErrNotPending
		}
		c.Attempts = nil
		_, err := d.process(ctx, chasers.Due{Case: c, Attempt: a})
		return err
	}
	return chasers.ErrNotFound
}

func (d *Dispatcher) process(ctx context.Context, item chasers.Due) (outcome, error) {
	c, a := item.Case, item.Attempt
	fields := map[string]any{"chaser_id": c.ID, "attempt": a.Number, "channel": a.Channel}

	if d.Claims != nil {
		release, err := d.Claims.Claim(ctx, a.ID)
		if err != nil {
			if !errors.Is(err, ErrAttemptClaimed) {
				fields["error"] = err
				telemetry.Warn("dispatch.attempt.claim_failed", fields)
			}
			return outcomeSkipped, err
		}
		defer release()
	}
	fresh, err := d.Repo.GetAttempt(ctx, c.ID, a.Number)
	if err != nil {
		fields["error"] = err
		telemetry.Error("dispatch.attempt.reload_failed", fields)
		return outcomeSkipped, err
	}
	if fresh.Status != chasers.AttemptPending {
		telemetry.Info("dispatch.attempt.already_handled", fields)
		return outcomeSkipped, chasers.ErrNotPending
	}
	a = fresh

	link, err := d.Linker.Link(ctx, c, a)
	if err != nil {
		fields["error"] = err
		telemetry.Error("dispatch.attempt.link_failed", fields)
		return outcomeSkipped, err
	}
	subject, body := a.Subject, a.Content
	if body == "" {
		out, err := d.Resolver.Resolve(ctx, d.contentInput(c, a, link))
		if err != nil {
			if errors.Is(err, content.ErrPredecessorUnresolved) {
				return d.deferAttempt(fields, "predecessor content unresolved")
			}
			fields["error"] = err
			telemetry.Error("dispatch.attempt.resolve_failed", fields)
			return outcomeSkipped, err
		}
		subject, body = link.Subject(out.Subject), out.Content
		if err := d.Repo.SaveAttemptContent(ctx, a.ID, subject, body); err != nil {
			fields["error"] = err
			telemetry.Error("dispatch.attempt.save_content_failed", fields)
			return outcomeSkipped, err
		}
		fields["source"] = string(out.Source)
	} else {
		subject = link.Subject(subject)
	}

	msg := messaging.Message{
		Channel: a.Channel,
		To:      c.Recipient(a.Channel),
		Subject: subject,
		Body:    body,
		Reply:   link.Reply,
	}
	res, err := d.Sender.Send(ctx, msg)
	if err != nil {
		metrics.IncAttemptFailed()
		fields["error"] = err.Error()
		telemetry.Warn("dispatch.attempt.failed", fields)
		if recErr := d.Repo.RecordAttemptFailure(ctx, a.ID, err.Error(), d.now()); recErr != nil {
			telemetry.Error("dispatch.attempt.record_failure_failed", map[string]any{"chaser_id": c.ID, "attempt": a.Number, "error": recErr})
		}
		return outcomeFailed, err
	}

	threadID := res.ThreadID
	if threadID == "" && link.Reply != nil {
		threadID = link.Reply.ThreadID
	}
	sentAt := d.now()
	updated, err := d.Repo.MarkAttemptSent(ctx, a.ID, chasers.SentUpdate{
		SentAt:     sentAt,
		MessageID:  res.MessageID,
		ThreadID:   threadID,
		ExternalID: res.ExternalID,
		Threading:  link.Threading,
	})
	metrics.IncAttemptSent()
	if err != nil {
		fields["error"] = err
		telemetry.Error("dispatch.attempt.mark_sent_failed", fields)
		return outcomeSent, nil
	}

	fields["threading"] = link.Threading
	fields["message_id"] = res.MessageID
	telemetry.Info("dispatch.attempt.sent", fields)
	d.publish(ctx, events.Event{Type: events.TypeAttemptSent, CaseID: c.ID, AttemptID: a.ID, AttemptNumber: a.Number, Channel: a.Channel, OccurredAt: sentAt})
	if updated.Status == chasers.StatusCompleted && c.Status != chasers.StatusCompleted {
		d.publish(ctx, events.Event{Type: events.TypeCaseCompleted, CaseID: c.ID, OccurredAt: sentAt})
	}
	return outcomeSent, nil
}

func (d *Dispatcher) deferAttempt(fields map[string]any, reason string) (outcome, error) {
	metrics.IncAttemptDeferred()
	fields["reason"] = reason
	telemetry.Info("dispatch.attempt.deferred", fields)
	return outcomeDeferred, errDeferred
}

func (d *Dispatcher) contentInput(c chasers.Case, a chasers.Attempt, link Link) content.Input {
	in := content.Input{
		ContactName:   c.ContactName,
		ContactEmail:  c.ContactEmail,
		Task:          c.Task,
		Documents:     c.Documents,
		Urgency:       c.Urgency,
		AttemptNumber: a.Number,
		Channel:       a.Channel,
		TemplateID:    a.TemplateID,
		Role:          link.Role,
	}
	if link.Predecessor != nil {
		in.Predecessor = &content.Predecessor{
			Number:  link.Predecessor.Number,
			Content: link.Predecessor.Content,
			Subject: link.Predecessor.Subject,
		}
	}
	return in
}

func (d *Dispatcher) publish(ctx context.Context, ev events.Event) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, ev); err != nil {
		telemetry.Warn("events.publish_failed", map[string]any{"type": ev.Type, "chaser_id": ev.CaseID, "error": err})
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}
