// Package content produces the subject and body for one outreach attempt.
package content

import (
	"context"
	"errors"
	"strings"

	"docchaser/internal/llm"
	"docchaser/internal/schedule"
	"docchaser/internal/shared/metrics"
	"docchaser/internal/shared/telemetry"
	"docchaser/internal/timing"
)

// Source records which step produced the content.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceTemplate  Source = "template"
	SourceEcho      Source = "echo"
)

// Predecessor is the stored state of attempt N-1 that a follow-up quotes.
type Predecessor struct {
	Number  int
	Content string
	Subject string
}

// Input is everything needed to resolve one attempt.
type Input struct {
	ContactName   string
	ContactEmail  string
	Task          string
	Documents     string
	Urgency       string
	AttemptNumber int
	Channel       string
	TemplateID    string
	Role          schedule.Role
	Predecessor   *Predecessor
}

// Output is the resolved message.
type Output struct {
	Content string
	Subject string
	Source  Source
}

// Resolver resolves attempt content with a generative step, a template step
// and an echo step for follow-ups.
type Resolver struct {
	gen              llm.Generator
	generateSubjects bool
}

// NewResolver returns a Resolver. A nil generator disables generative content.
func NewResolver(gen llm.Generator, generateSubjects bool) *Resolver {
	return &Resolver{gen: gen, generateSubjects: generateSubjects}
}

// Resolve returns the content and subject for in. The only error is
// ErrPredecessorUnresolved for follow-ups whose predecessor has no content.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Output, error) {
	if in.Role == schedule.RoleFollowUp {
		return r.resolveFollowUp(in)
	}

	out := Output{Source: SourceTemplate}
	if body, ok := r.generateBody(ctx, in); ok {
		out.Content = body
		out.Source = SourceGenerated
	} else {
		out.Content = RenderTemplate(in.TemplateID, in.templateData())
	}
	if in.Channel == timing.ChannelEmail {
		out.Subject = r.subject(ctx, in)
	}
	return out, nil
}

func (r *Resolver) resolveFollowUp(in Input) (Output, error) {
	if in.Predecessor == nil {
		return Output{}, ErrPredecessorUnresolved
	}
	contact := in.ContactName
	if strings.TrimSpace(contact) == "" {
		contact = in.ContactEmail
	}
	body, err := Echo(contact, in.Predecessor.Content)
	if err != nil {
		return Output{}, err
	}
	out := Output{Content: body, Source: SourceEcho}
	if in.Channel == timing.ChannelEmail {
		prev := in.Predecessor.Subject
		if strings.TrimSpace(prev) == "" {
			prev = Subject(schedule.RoleInitial, in.Predecessor.Number, in.Documents, in.Urgency)
		}
		out.Subject = ReplySubject(prev)
	}
	return out, nil
}

func (r *Resolver) generateBody(ctx context.Context, in Input) (string, bool) {
	if r.gen == nil || in.Channel != timing.ChannelEmail {
		return "", false
	}
	var kind llm.Kind
	switch in.Role {
	case schedule.RoleInitial:
		kind = llm.KindInitialEmail
	case schedule.RoleEscalated:
		kind = llm.KindEscalatedEmail
	default:
		return "", false
	}

	raw, err := r.gen.Generate(ctx, kind, in.llmRequest())
	if err == nil {
		body := llm.ExtractDelimited(raw)
		switch {
		case body == "":
			err = errors.New("empty generated body")
		case llm.HasPlaceholder(body):
			err = errors.New("generated body contains placeholder")
		default:
			return body, true
		}
	}
	if !errors.Is(err, llm.ErrNotImplemented) {
		metrics.IncGenerationFallback()
		telemetry.Warn("content.generate.fallback", map[string]any{
			"kind":    string(kind),
			"attempt": in.AttemptNumber,
			"error":   err,
		})
	}
	return "", false
}

func (r *Resolver) subject(ctx context.Context, in Input) string {
	fallback := Subject(in.Role, in.AttemptNumber, in.Documents, in.Urgency)
	if r.gen == nil || !r.generateSubjects {
		return fallback
	}
	raw, err := r.gen.Generate(ctx, llm.KindSubject, in.llmRequest())
	if err != nil {
		if !errors.Is(err, llm.ErrNotImplemented) {
			metrics.IncGenerationFallback()
			telemetry.Warn("content.subject.fallback", map[string]any{"attempt": in.AttemptNumber, "error": err})
		}
		return fallback
	}
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	line = strings.Trim(strings.TrimSpace(line), `"'`)
	if line == "" {
		return fallback
	}
	if in.Role == schedule.RoleEscalated && !strings.HasPrefix(strings.ToUpper(line), "URGENT") {
		line = "URGENT: " + line
	}
	return line
}

func (in Input) templateData() TemplateData {
	name := in.ContactName
	if strings.TrimSpace(name) == "" {
		name = FirstName(in.ContactEmail)
	}
	return TemplateData{
		ContactName:   name,
		Documents:     in.Documents,
		Task:          in.Task,
		AttemptNumber: in.AttemptNumber,
		Urgency:       in.Urgency,
	}
}

func (in Input) llmRequest() llm.Request {
	d := in.templateData()
	return llm.Request{
		ContactName:   d.ContactName,
		Task:          d.Task,
		Documents:     d.Documents,
		Urgency:       d.Urgency,
		AttemptNumber: d.AttemptNumber,
	}
}
