package content

import (
	"errors"
	"strings"
)

// ErrPredecessorUnresolved is returned when a follow-up is resolved before
// the attempt it quotes has content.
var ErrPredecessorUnresolved = errors.New("predecessor attempt content not resolved")

const quoteSeparator = "-------- Previous message --------"

// FirstName derives a greeting name from a contact name or email address.
func FirstName(nameOrEmail string) string {
	s := strings.TrimSpace(nameOrEmail)
	if local, _, ok := strings.Cut(s, "@"); ok {
		first, _, _ := strings.Cut(local, ".")
		return first
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}

// Echo builds a follow-up that quotes the predecessor's content verbatim.
func Echo(contact, predecessorContent string) (string, error) {
	if strings.TrimSpace(predecessorContent) == "" {
		return "", ErrPredecessorUnresolved
	}
	name := FirstName(contact)
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	b.WriteString("Hi ")
	b.WriteString(name)
	b.WriteString(",\n\n")
	b.WriteString("I wanted to follow up on my previous message below.\n\n")
	b.WriteString(quoteSeparator)
	b.WriteString("\n")
	b.WriteString(predecessorContent)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(quoteSeparator)))
	b.WriteString("\n\n")
	b.WriteString("Could you please send these documents at your earliest convenience? Let me know if anything is unclear.\n\n")
	b.WriteString("Thank you.")
	return b.String(), nil
}
