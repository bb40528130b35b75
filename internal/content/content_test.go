package content

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchaser/internal/llm"
	"docchaser/internal/schedule"
	"docchaser/internal/shared/telemetry"
)

type fakeGenerator struct {
	out   map[llm.Kind]string
	err   error
	calls []llm.Kind
}

func (f *fakeGenerator) Generate(ctx context.Context, kind llm.Kind, req llm.Request) (string, error) {
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return "", f.err
	}
	return f.out[kind], nil
}

func baseInput(number int, channel string, role schedule.Role) Input {
	return Input{
		ContactName:   "Ana Lee",
		ContactEmail:  "ana.lee@example.com",
		Task:          "2024 tax return",
		Documents:     "Bank statement at 30.09.2025\nInvoice Inv-5",
		Urgency:       "High",
		AttemptNumber: number,
		Channel:       channel,
		TemplateID:    schedule.TemplateID(number, channel),
		Role:          role,
	}
}

func TestMain(m *testing.M) {
	telemetry.SetOutput(io.Discard)
	m.Run()
}

func TestResolveUsesGeneratedBodyForInitialEmail(t *testing.T) {
	gen := &fakeGenerator{out: map[llm.Kind]string{llm.KindInitialEmail: "'''\nHi Ana Lee,\nplease send it.\n'''"}}
	r := NewResolver(gen, false)

	out, err := r.Resolve(context.Background(), baseInput(1, "email", schedule.RoleInitial))
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, out.Source)
	assert.Equal(t, "Hi Ana Lee,\nplease send it.", out.Content)
	assert.Equal(t, "Document Requirements - Bank statement at 30.09.2025", out.Subject)
	assert.Equal(t, []llm.Kind{llm.KindInitialEmail}, gen.calls)
}

func TestResolveEscalatedUsesEscalatedPrompt(t *testing.T) {
	gen := &fakeGenerator{out: map[llm.Kind]string{llm.KindEscalatedEmail: "'''urgent body'''"}}
	out, err := NewResolver(gen, false).Resolve(context.Background(), baseInput(3, "email", schedule.RoleEscalated))
	require.NoError(t, err)
	assert.Equal(t, "urgent body", out.Content)
	assert.True(t, strings.HasPrefix(out.Subject, "URGENT: Document Requirements - "))
}

func TestResolveFallsBackToTemplate(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "error", gen: &fakeGenerator{err: errors.New("quota exceeded")}},
		{name: "empty", gen: &fakeGenerator{out: map[llm.Kind]string{}}},
		{name: "placeholder", gen: &fakeGenerator{out: map[llm.Kind]string{llm.KindInitialEmail: "'''Hi [Recipient's Name],'''"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewResolver(tt.gen, false).Resolve(context.Background(), baseInput(1, "email", schedule.RoleInitial))
			require.NoError(t, err)
			assert.Equal(t, SourceTemplate, out.Source)
			assert.Contains(t, out.Content, "Hi Ana Lee,")
			assert.Contains(t, out.Content, "Invoice Inv-5")
		})
	}
}

func TestResolveSkipsGeneratorForNonEmail(t *testing.T) {
	gen := &fakeGenerator{out: map[llm.Kind]string{llm.KindInitialEmail: "'''x'''"}}
	out, err := NewResolver(gen, false).Resolve(context.Background(), baseInput(1, "whatsapp", schedule.RoleInitial))
	require.NoError(t, err)
	assert.Empty(t, gen.calls)
	assert.Empty(t, out.Subject)
	assert.True(t, strings.HasPrefix(out.Content, "Hi Ana Lee!"))
}

func TestEveryAttemptResolvesWhenGeneratorAlwaysFails(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("down")}
	r := NewResolver(gen, true)
	slots := schedule.NewGenerator(nil).Generate("c", "High", "Email", "W-2", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	var prev *Predecessor
	prevChannel := ""
	for _, s := range slots {
		in := baseInput(s.Number, s.Channel, schedule.Classify(s.Number, s.Channel, prevChannel))
		in.Predecessor = prev
		out, err := r.Resolve(context.Background(), in)
		require.NoError(t, err, "attempt %d", s.Number)
		assert.NotEmpty(t, out.Content, "attempt %d", s.Number)
		prev = &Predecessor{Number: s.Number, Content: out.Content, Subject: out.Subject}
		prevChannel = s.Channel
	}
}

func TestResolveFollowUpQuotesPredecessor(t *testing.T) {
	r := NewResolver(nil, false)
	first, err := r.Resolve(context.Background(), baseInput(1, "email", schedule.RoleInitial))
	require.NoError(t, err)

	in := baseInput(2, "email", schedule.RoleFollowUp)
	in.Predecessor = &Predecessor{Number: 1, Content: first.Content, Subject: first.Subject}
	out, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, SourceEcho, out.Source)
	assert.Contains(t, out.Content, first.Content)
	assert.True(t, strings.HasPrefix(out.Content, "Hi Ana,"))
	assert.Equal(t, "Re: "+first.Subject, out.Subject)
}

func TestResolveFollowUpWithoutPredecessorContent(t *testing.T) {
	r := NewResolver(nil, false)
	in := baseInput(2, "email", schedule.RoleFollowUp)
	_, err := r.Resolve(context.Background(), in)
	assert.ErrorIs(t, err, ErrPredecessorUnresolved)

	in.Predecessor = &Predecessor{Number: 1}
	_, err = r.Resolve(context.Background(), in)
	assert.ErrorIs(t, err, ErrPredecessorUnresolved)
}

func TestGeneratedSubject(t *testing.T) {
	gen := &fakeGenerator{out: map[llm.Kind]string{
		llm.KindInitialEmail: "'''body'''",
		llm.KindSubject:      "\"Documents needed for your return\"\nextra",
	}}
	out, err := NewResolver(gen, true).Resolve(context.Background(), baseInput(1, "email", schedule.RoleInitial))
	require.NoError(t, err)
	assert.Equal(t, "Documents needed for your return", out.Subject)
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "ana", FirstName("ana.lee@example.com"))
	assert.Equal(t, "Ana", FirstName("Ana Lee"))
	assert.Equal(t, "Bart", FirstName("  Bart  "))
	assert.Equal(t, "", FirstName(""))
}

func TestSubjects(t *testing.T) {
	docs := strings.Repeat("x", 60) + "\nsecond line"
	preview := strings.Repeat("x", 50)
	assert.Equal(t, preview, Preview(docs))
	assert.Equal(t, "Follow-up: "+preview+" Needed", Subject(schedule.RoleStandalone, 4, docs, "Low"))
	assert.Equal(t, "Low Priority - W-2 Required", Subject(schedule.Role("other"), 3, "W-2", "Low"))
	assert.Equal(t, "Request for W-2", LegacySubject(1, "W-2", "Low"))

	assert.Equal(t, "Re: Hello", ReplySubject("Hello"))
	assert.Equal(t, "RE: Hello", ReplySubject("RE: Hello"))
	assert.Equal(t, "Hello", StripReply("Re: re: Hello"))
}

func TestRenderTemplateUnknownIDUsesDefault(t *testing.T) {
	out := RenderTemplate("attempt_9_sms", TemplateData{ContactName: "Ana", Documents: "W-2", Task: "audit", AttemptNumber: 9, Urgency: "Low"})
	assert.Contains(t, out, "This is attempt 9 to reach you.")
	assert.False(t, TemplateExists("attempt_9_sms"))
	assert.True(t, TemplateExists("attempt_4_email"))
}
