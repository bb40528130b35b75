// Package messaging routes outbound messages to per-channel senders.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
)

var (
	// ErrChannelNotImplemented is returned for channels without a real sender.
	ErrChannelNotImplemented = errors.New("channel not implemented")
	// ErrNoRecipient is returned when a message has no destination address.
	ErrNoRecipient = errors.New("message has no recipient")
	// ErrDailyLimitReached is returned once the daily send quota is used up.
	ErrDailyLimitReached = errors.New("daily send limit reached")
)

// Reply carries the threading headers for a message sent into an existing
// conversation.
type Reply struct {
	InReplyTo  string
	References string
	ThreadID   string
}

// Message is one outbound message.
type Message struct {
	Channel string
	To      string
	Subject string
	Body    string
	Reply   *Reply
}

// Result identifies a sent message at the provider. MessageID is the value
// later replies reference; ExternalID is the provider's own handle.
type Result struct {
	MessageID  string
	ThreadID   string
	ExternalID string
}

// Sender delivers messages for one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// Registry routes messages by channel.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry returns a Registry with stub senders for every channel.
func NewRegistry() *Registry {
	return &Registry{senders: map[string]Sender{
		"email":    Stub{Channel: "email"},
		"whatsapp": Stub{Channel: "whatsapp"},
		"sms":      Stub{Channel: "sms"},
		"call":     Stub{Channel: "call"},
	}}
}

// Register installs s for channel, replacing any previous sender.
func (r *Registry) Register(channel string, s Sender) {
	r.senders[strings.ToLower(channel)] = s
}

// Send delivers msg through the sender registered for msg.Channel.
func (r *Registry) Send(ctx context.Context, msg Message) (Result, error) {
	s, ok := r.senders[strings.ToLower(msg.Channel)]
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", msg.Channel, ErrChannelNotImplemented)
	}
	return s.Send(ctx, msg)
}

// Stub is a Sender for channels that are not wired to a provider.
type Stub struct {
	Channel string
}

// Send always fails with ErrChannelNotImplemented.
func (s Stub) Send(ctx context.Context, msg Message) (Result, error) {
	_ = ctx
	_ = msg
	return Result{}, fmt.Errorf("%s: %w", s.Channel, ErrChannelNotImplemented)
}

// HTMLBody wraps plain text in the HTML container used for email bodies.
func HTMLBody(text string) string {
	return `<div style="font-family: Arial, sans-serif; white-space: pre-wrap;">` + html.EscapeString(text) + `</div>`
}
