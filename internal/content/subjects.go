package content

import (
	"fmt"
	"strings"

	"docchaser/internal/schedule"
)

const (
	replyPrefix   = "Re: "
	previewLength = 50
)

// Preview returns the first line of documents, cut to 50 runes.
func Preview(documents string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(documents), "\n")
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return strings.TrimSpace(string(runes))
}

// Subject returns the deterministic subject for an attempt role. Follow-ups
// use ReplySubject instead.
func Subject(role schedule.Role, number int, documents, urgency string) string {
	preview := Preview(documents)
	switch role {
	case schedule.RoleInitial:
		return "Document Requirements - " + preview
	case schedule.RoleEscalated:
		return "URGENT: Document Requirements - " + preview
	case schedule.RoleStandalone:
		return fmt.Sprintf("Follow-up: %s Needed", preview)
	default:
		return LegacySubject(number, preview, urgency)
	}
}

// LegacySubject is the position-based subject formula.
func LegacySubject(number int, documents, urgency string) string {
	switch number {
	case 1:
		return "Request for " + documents
	case 2:
		return fmt.Sprintf("Follow-up: %s Needed", documents)
	default:
		return fmt.Sprintf("%s Priority - %s Required", urgency, documents)
	}
}

// ReplySubject prefixes subject with "Re: " unless it already carries it.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if HasReplyPrefix(subject) {
		return subject
	}
	return replyPrefix + subject
}

// StripReply removes any leading "Re:" prefixes.
func StripReply(subject string) string {
	subject = strings.TrimSpace(subject)
	for HasReplyPrefix(subject) {
		subject = strings.TrimSpace(subject[len("re:"):])
	}
	return subject
}

// HasReplyPrefix reports whether subject starts with "Re:" in any case.
func HasReplyPrefix(subject string) bool {
	return len(subject) >= 3 && strings.EqualFold(subject[:3], "re:")
}
