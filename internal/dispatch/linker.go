package dispatch

import (
	"context"
	"errors"
	"fmt"

	"docchaser/internal/chasers"
	"docchaser/internal/content"
	"docchaser/internal/messaging"
	"docchaser/internal/schedule"
	"docchaser/internal/shared/telemetry"
)

// AttemptLookup loads one attempt of a case.
type AttemptLookup interface {
	GetAttempt(ctx context.Context, caseID string, number int) (chasers.Attempt, error)
}

// Link is the threading decision for one attempt.
type Link struct {
	Role        schedule.Role
	Threading   string
	Reply       *messaging.Reply
	Predecessor *chasers.Attempt
}

// Subject adjusts a resolved subject to the threading decision: replies
// carry exactly one "Re:" and degraded follow-ups carry none.
func (l Link) Subject(subject string) string {
	switch l.Threading {
	case chasers.ThreadReply:
		return content.ReplySubject(subject)
	case chasers.ThreadDegraded:
		return content.StripReply(subject)
	default:
		return subject
	}
}

// Linker decides whether an attempt replies into its predecessor's thread.
type Linker struct {
	Attempts AttemptLookup
}

// Link classifies a and, for follow-ups, links it to attempt N-1.
func (l Linker) Link(ctx context.Context, c chasers.Case, a chasers.Attempt) (Link, error) {
	var pred *chasers.Attempt
	prevChannel := ""
	if a.Number > 1 {
		p, err := l.Attempts.GetAttempt(ctx, c.ID, a.Number-1)
		switch {
		case err == nil:
			pred = &p
			prevChannel = p.Channel
		case errors.Is(err, chasers.ErrNotFound):
		default:
			return Link{}, fmt.Errorf("load predecessor: %w", err)
		}
	}

	link := Link{
		Role:        schedule.Classify(a.Number, a.Channel, prevChannel),
		Threading:   chasers.ThreadNew,
		Predecessor: pred,
	}
	if link.Role != schedule.RoleFollowUp {
		return link, nil
	}

	if pred.ProviderMessageID == "" {
		link.Threading = chasers.ThreadDegraded
		telemetry.Warn("dispatch.thread.degraded", map[string]any{
			"chaser_id":          c.ID,
			"attempt":            a.Number,
			"predecessor_status": pred.Status,
			"reason":             "predecessor has no provider message id",
		})
		return link, nil
	}
	link.Threading = chasers.ThreadReply
	link.Reply = &messaging.Reply{
		InReplyTo:  pred.ProviderMessageID,
		References: pred.ProviderMessageID,
		ThreadID:   pred.ProviderThreadID,
	}
	return link, nil
}
