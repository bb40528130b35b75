// Package chasers owns outreach cases and their attempts.
package chasers

import (
	"strings"
	"time"

	"docchaser/internal/schedule"
	"docchaser/internal/timing"
)

// Case statuses.
const (
	StatusPending    = "pending"
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Attempt statuses.
const (
	AttemptPending   = "pending"
	AttemptSent      = "sent"
	AttemptDelivered = "delivered"
	AttemptFailed    = "failed"
	AttemptResponded = "responded"
)

// Threading outcomes recorded in attempt metadata.
const (
	ThreadNew      = "new_thread"
	ThreadReply    = "reply"
	ThreadDegraded = "degraded_new_thread"
)

// Case is one outreach campaign for a document request.
type Case struct {
	ID                 string
	Task               string
	Documents          string
	Who                string
	ContactName        string
	ContactEmail       string
	ContactPhone       string
	CustomerID         string
	Urgency            string
	ChannelPreference  string
	Status             string
	CurrentAttempt     int
	MaxAttempts        int
	NextOutreachAt     *time.Time
	CompletedAt        *time.Time
	ResponseReceivedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Attempts           []Attempt
}

// Terminal reports whether the case no longer dispatches attempts.
func (c Case) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusFailed
}

// Recipient returns the address for channel: the contact email (or the
// free-text contact when it looks like an address) for email, the phone
// number otherwise.
func (c Case) Recipient(channel string) string {
	if channel == timing.ChannelEmail {
		if c.ContactEmail != "" {
			return c.ContactEmail
		}
		if strings.Contains(c.Who, "@") {
			return strings.TrimSpace(c.Who)
		}
		return ""
	}
	return c.ContactPhone
}

// Attempt is one scheduled touch within a case.
type Attempt struct {
	ID                string
	CaseID            string
	Number            int
	Channel           string
	ScheduledFor      time.Time
	Status            string
	Subject           string
	Content           string
	TemplateID        string
	SentAt            *time.Time
	DeliveredAt       *time.Time
	ResponseReceived  bool
	ProviderMessageID string
	ProviderThreadID  string
	Metadata          Metadata
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PendingStatus implements schedule.Pending.
func (a Attempt) PendingStatus() string { return a.Status }

// DueAt implements schedule.Pending.
func (a Attempt) DueAt() time.Time { return a.ScheduledFor }

// Metadata holds free-form attempt bookkeeping.
type Metadata struct {
	ErrorMessage string     `json:"errorMessage,omitempty"`
	LastErrorAt  *time.Time `json:"lastErrorAt,omitempty"`
	FailureCount int        `json:"failureCount,omitempty"`
	OpenedAt     *time.Time `json:"openedAt,omitempty"`
	ClickedAt    *time.Time `json:"clickedAt,omitempty"`
	ExternalID   string     `json:"externalId,omitempty"`
	Threading    string     `json:"threading,omitempty"`
}

// Due pairs a due attempt with its case.
type Due struct {
	Case    Case
	Attempt Attempt
}

// SentUpdate is what a successful send records on an attempt.
type SentUpdate struct {
	SentAt     time.Time
	MessageID  string
	ThreadID   string
	ExternalID string
	Threading  string
}

// Engagement kinds recorded from provider webhooks.
const (
	EngagementOpened  = "opened"
	EngagementClicked = "clicked"
)

// Role returns the role of attempt number within attempts.
func Role(attempts []Attempt, number int) schedule.Role {
	var channel, prev string
	for _, a := range attempts {
		switch a.Number {
		case number:
			channel = a.Channel
		case number - 1:
			prev = a.Channel
		}
	}
	return schedule.Classify(number, channel, prev)
}

// applySent moves the attempt to sent and advances the case. Shared by the
// repositories so both apply the same transition.
func applySent(c *Case, a *Attempt, upd SentUpdate, attempts []Attempt) {
	sentAt := upd.SentAt
	a.Status = AttemptSent
	a.SentAt = &sentAt
	a.ProviderMessageID = upd.MessageID
	a.ProviderThreadID = upd.ThreadID
	a.Metadata.ExternalID = upd.ExternalID
	a.Metadata.Threading = upd.Threading
	a.Metadata.ErrorMessage = ""
	a.UpdatedAt = sentAt

	if a.Number > c.CurrentAttempt {
		c.CurrentAttempt = a.Number
	}
	if c.CurrentAttempt > c.MaxAttempts {
		c.CurrentAttempt = c.MaxAttempts
	}
	c.NextOutreachAt = schedule.NextDue(attempts)
	c.UpdatedAt = sentAt
	switch {
	case c.Terminal():
	case c.NextOutreachAt == nil:
		c.Status = StatusCompleted
		c.CompletedAt = &sentAt
	default:
		c.Status = StatusInProgress
	}
}

// applyResponse records a reply and closes the case. Pending attempts are left
// as they are; a terminal case is never due.
func applyResponse(c *Case, a *Attempt, at time.Time) {
	a.Status = AttemptResponded
	a.ResponseReceived = true
	a.UpdatedAt = at

	c.Status = StatusCompleted
	c.ResponseReceivedAt = &at
	if c.CompletedAt == nil {
		c.CompletedAt = &at
	}
	c.NextOutreachAt = nil
	c.UpdatedAt = at
}
