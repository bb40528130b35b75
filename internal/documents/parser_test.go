package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchaser/internal/llm"
	"docchaser/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.SetOutput(io.Discard)
	m.Run()
}

type stubGenerator struct {
	out  string
	err  error
	kind llm.Kind
}

func (s *stubGenerator) Generate(ctx context.Context, kind llm.Kind, req llm.Request) (string, error) {
	s.kind = kind
	return s.out, s.err
}

func names(items []Parsed) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestSimpleParserSplitsLines(t *testing.T) {
	items := SimpleParser{}.Parse(context.Background(), "Bank statements: PDF at 30.09.2025\n\n  Sale invoices – after Inv-5\nPayroll summary\n")
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Bank statements", "Sale invoices", "Payroll summary"}, names(items))
	assert.Equal(t, "Bank statements: PDF at 30.09.2025", items[0].Description)
	assert.Empty(t, items[2].Description)
	assert.Equal(t, 1, *items[1].Order)
}

func TestSimpleParserSingleLineAndEmpty(t *testing.T) {
	items := SimpleParser{}.Parse(context.Background(), "Signed engagement letter")
	require.Len(t, items, 1)
	assert.Equal(t, "Signed engagement letter", items[0].Name)
	assert.Empty(t, items[0].Description)

	long := strings.Repeat("x", 150)
	items = SimpleParser{}.Parse(context.Background(), long)
	require.Len(t, items, 1)
	assert.Len(t, items[0].Name, 100)
	assert.Equal(t, long, items[0].Description)

	items = SimpleParser{}.Parse(context.Background(), "   \n  ")
	require.Len(t, items, 1)
	assert.Equal(t, fallbackName, items[0].Name)
}

func TestAIParserDecodesFencedJSON(t *testing.T) {
	gen := &stubGenerator{out: "```json\n[{\"name\":\"Bank Statements PDF\",\"description\":\"at 30.09.2025\",\"order\":0},{\"name\":\"\"}]\n```"}
	items := AIParser{Gen: gen}.Parse(context.Background(), "bank statements and invoices")

	assert.Equal(t, llm.KindParseDocuments, gen.kind)
	require.Len(t, items, 2)
	assert.Equal(t, "Bank Statements PDF", items[0].Name)
	assert.Equal(t, "Document 2", items[1].Name)
	assert.Equal(t, 1, *items[1].Order)
}

func TestAIParserFallsBack(t *testing.T) {
	cases := map[string]*stubGenerator{
		"generate error": {err: errors.New("boom")},
		"not json":       {out: "here are your documents"},
		"empty array":    {out: "[]"},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			items := AIParser{Gen: gen}.Parse(context.Background(), "bank statements")
			require.Len(t, items, 1)
			assert.Equal(t, fallbackName, items[0].Name)
			assert.Equal(t, "bank statements", items[0].Description)
		})
	}
}
