// Package llm defines the generative content collaborator used for email
// bodies, subjects and document segmentation.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Kind selects the prompt sent to the provider.
type Kind string

const (
	KindInitialEmail   Kind = "initial_email"
	KindEscalatedEmail Kind = "escalated_email"
	KindSubject        Kind = "subject"
	KindParseDocuments Kind = "parse_documents"
)

// Request carries the case context a prompt is rendered from.
type Request struct {
	ContactName   string
	Task          string
	Documents     string
	Urgency       string
	AttemptNumber int
	Company       string
}

// Generator produces text for a prompt kind. Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, kind Kind, req Request) (string, error)
}

// ErrNotImplemented is returned by the disabled generator.
var ErrNotImplemented = errors.New("LLM not implemented")

// Disabled is the generator used when no provider is configured.
type Disabled struct{}

// Generate returns ErrNotImplemented.
func (Disabled) Generate(ctx context.Context, kind Kind, req Request) (string, error) {
	_ = ctx
	_ = kind
	_ = req
	return "", ErrNotImplemented
}

var delimited = regexp.MustCompile(`(?s)'''(.*?)'''`)

// ExtractDelimited returns the text between the first pair of triple-quote markers,
// or the trimmed input when no markers are present.
func ExtractDelimited(raw string) string {
	if m := delimited.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

var placeholders = []string{"[Recipient", "[Your Name]", "[Name]", "[Contact"}

// HasPlaceholder reports whether text still contains a template placeholder
// the model was told not to emit.
func HasPlaceholder(text string) bool {
	for _, p := range placeholders {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
