// Package events publishes outreach lifecycle notifications to downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeAttemptSent   = "attempt.sent"
	TypeCaseCompleted = "case.completed"
	TypeCaseResponded = "case.responded"
)

// Event is the payload published for each lifecycle change.
type Event struct {
	Type          string    `json:"type"`
	CaseID        string    `json:"chaserId"`
	AttemptID     string    `json:"attemptId,omitempty"`
	AttemptNumber int       `json:"attemptNumber,omitempty"`
	Channel       string    `json:"channel,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Version       int       `json:"version"`
}

// Publisher sends events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Encode returns the JSON representation of an event.
func Encode(ev Event) ([]byte, error) {
	if ev.Version == 0 {
		ev.Version = 1
	}
	return json.Marshal(ev)
}

// Noop discards events.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(ctx context.Context, ev Event) error {
	_ = ctx
	_ = ev
	return nil
}
