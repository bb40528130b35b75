// Package schedule turns a timing policy into the ordered attempt plan for a
// case and recomputes attempt roles from attempt-number arithmetic.
package schedule

import (
	"fmt"
	"time"

	"docchaser/internal/timing"
)

// StatusPending is the status of every freshly generated slot.
const StatusPending = "pending"

// Slot is one planned attempt.
type Slot struct {
	CaseID       string    `json:"chaserId"`
	Number       int       `json:"attemptNumber"`
	Channel      string    `json:"channel"`
	ScheduledFor time.Time `json:"scheduledFor"`
	TemplateID   string    `json:"templateId"`
	Status       string    `json:"status"`
}

// Generator builds schedules from the active timing policy.
type Generator struct {
	Policies *timing.Store
}

// NewGenerator returns a Generator reading from store, or from the default
// policy when store is nil.
func NewGenerator(store *timing.Store) *Generator {
	if store == nil {
		store = timing.NewStore(nil)
	}
	return &Generator{Policies: store}
}

// Generate returns the attempt plan for a case created at now. Documents is
// accepted for parity with content resolution and does not affect timing.
func (g *Generator) Generate(caseID, urgency, preference, documents string, now time.Time) []Slot {
	_ = documents
	return Build(g.Policies.Current(), caseID, urgency, preference, now)
}

// Build is Generate against an explicit policy.
func Build(p *timing.Policy, caseID, urgency, preference string, now time.Time) []Slot {
	delays := p.Delays(urgency)
	if len(delays) == 0 {
		return nil
	}
	rotation := p.Rotation(preference)

	slots := make([]Slot, 0, len(delays))
	at := now
	for i, days := range delays {
		at = at.Add(daysToDuration(days))
		channel := rotation[i%len(rotation)]
		n := i + 1
		slots = append(slots, Slot{
			CaseID:       caseID,
			Number:       n,
			Channel:      channel,
			ScheduledFor: at,
			TemplateID:   TemplateID(n, channel),
			Status:       StatusPending,
		})
	}
	return slots
}

// TemplateID names the template for an attempt position and channel.
func TemplateID(number int, channel string) string {
	return fmt.Sprintf("attempt_%d_%s", number, channel)
}

// NextDue returns the earliest ScheduledFor among pending slots, or nil.
func NextDue[T Pending](attempts []T) *time.Time {
	var next *time.Time
	for _, a := range attempts {
		if a.PendingStatus() != StatusPending {
			continue
		}
		at := a.DueAt()
		if next == nil || at.Before(*next) {
			t := at
			next = &t
		}
	}
	return next
}

// Pending is implemented by anything NextDue can inspect.
type Pending interface {
	PendingStatus() string
	DueAt() time.Time
}

// PendingStatus implements Pending.
func (s Slot) PendingStatus() string { return s.Status }

// DueAt implements Pending.
func (s Slot) DueAt() time.Time { return s.ScheduledFor }

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * float64(24*time.Hour))
}
