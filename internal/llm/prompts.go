package llm

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Prompt is the rendered system and user message pair for one kind.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

var systemMessages = map[Kind]string{
	KindInitialEmail:   "You are a professional email writer. Generate ONLY the email body content between ''' markers. Be concise and preserve document names exactly as provided.",
	KindEscalatedEmail: "You are a professional email writer creating an escalated request. Previous attempts were ignored. Be more urgent and direct but remain professional and polite. Generate ONLY the email body between ''' markers. Preserve all document details exactly.",
	KindSubject:        "Generate clear, action-oriented email subject lines.",
	KindParseDocuments: "You are a precise document parsing assistant. Return only valid JSON arrays, no markdown formatting.",
}

var sampling = map[Kind]struct {
	temperature float32
	maxTokens   int
}{
	KindInitialEmail:   {0, 300},
	KindEscalatedEmail: {0, 300},
	KindSubject:        {0.8, 50},
	KindParseDocuments: {0.3, 1000},
}

// BuildPrompt renders the prompt for kind.
func BuildPrompt(kind Kind, req Request) (Prompt, error) {
	system, ok := systemMessages[kind]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt kind %q", kind)
	}
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, string(kind)+".tmpl", req); err != nil {
		return Prompt{}, fmt.Errorf("render %s prompt: %w", kind, err)
	}
	s := sampling[kind]
	return Prompt{
		System:      system,
		User:        buf.String(),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}, nil
}
