package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"docchaser/internal/llm"
	"docchaser/internal/shared/telemetry"
)

// Parsed is a document extracted from free text.
type Parsed struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       *int   `json:"order,omitempty"`
}

// Parser splits the free-text documents field of a case into items.
type Parser interface {
	Parse(ctx context.Context, text string) []Parsed
}

const fallbackName = "Documents Required"

var nameRe = regexp.MustCompile(`^([^:–-]+)`)

// SimpleParser treats each non-empty line as one document.
type SimpleParser struct{}

// Parse implements Parser.
func (SimpleParser) Parse(_ context.Context, text string) []Parsed {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	switch len(lines) {
	case 0:
		return []Parsed{fallback(text, 500)}
	case 1:
		p := Parsed{Name: truncate(strings.TrimSpace(text), 100), Order: intPtr(0)}
		if len([]rune(strings.TrimSpace(text))) > 100 {
			p.Description = strings.TrimSpace(text)
		}
		return []Parsed{p}
	}

	out := make([]Parsed, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, "*•· ")
		name := truncate(trimmed, 80)
		if m := nameRe.FindStringSubmatch(trimmed); m != nil {
			name = truncate(strings.TrimSpace(m[1]), 80)
		}
		p := Parsed{Name: name, Order: intPtr(i)}
		if len(trimmed) > len(name) {
			p.Description = trimmed
		}
		out = append(out, p)
	}
	return out
}

// AIParser asks the generative backend for a JSON array of documents and
// falls back to a single item when the answer is unusable.
type AIParser struct {
	Gen llm.Generator
}

// Parse implements Parser.
func (p AIParser) Parse(ctx context.Context, text string) []Parsed {
	raw, err := p.Gen.Generate(ctx, llm.KindParseDocuments, llm.Request{Documents: text})
	if err != nil {
		telemetry.Warn("documents.parse.generate_failed", map[string]any{"error": err})
		return []Parsed{fallback(text, 500)}
	}
	items, err := decodeParsed(raw)
	if err != nil {
		telemetry.Warn("documents.parse.decode_failed", map[string]any{"error": err})
		return []Parsed{fallback(text, 500)}
	}
	if len(items) == 0 {
		return []Parsed{fallback(text, 200)}
	}
	for i := range items {
		if strings.TrimSpace(items[i].Name) == "" {
			items[i].Name = fmt.Sprintf("Document %d", i+1)
		}
		if items[i].Order == nil {
			items[i].Order = intPtr(i)
		}
	}
	return items
}

func decodeParsed(raw string) ([]Parsed, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.Contains(cleaned, "```") {
		cleaned = strings.ReplaceAll(cleaned, "```json", "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
		cleaned = strings.TrimSpace(cleaned)
	}
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}
	var items []Parsed
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}
	return items, nil
}

func fallback(text string, limit int) Parsed {
	return Parsed{Name: fallbackName, Description: truncate(text, limit), Order: intPtr(0)}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func intPtr(v int) *int { return &v }
