// Package gmail sends email through the Gmail REST API using an OAuth2
// refresh token.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"docchaser/internal/messaging"
	"docchaser/internal/shared/telemetry"
)

// SendScope is the OAuth2 scope needed to send mail.
const SendScope = "https://www.googleapis.com/auth/gmail.send"

var sendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// Config holds the Gmail OAuth2 credentials and sender address.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	From         string
	Timeout      time.Duration
}

// Sender implements messaging.Sender for email.
type Sender struct {
	client  *http.Client
	from    string
	limiter *messaging.DailyLimiter
	now     func() time.Time
}

// New returns a Sender whose HTTP client refreshes access tokens from
// cfg.RefreshToken.
func New(ctx context.Context, cfg Config, limiter *messaging.DailyLimiter) (*Sender, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gmail oauth credentials are required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("GMAIL_FROM_EMAIL is required")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{SendScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = cfg.Timeout
	if client.Timeout <= 0 {
		client.Timeout = 30 * time.Second
	}
	return NewWithClient(client, cfg.From, limiter), nil
}

// NewWithClient returns a Sender using an already authorized client.
func NewWithClient(client *http.Client, from string, limiter *messaging.DailyLimiter) *Sender {
	return &Sender{client: client, from: from, limiter: limiter, now: time.Now}
}

type sendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type sendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Send delivers msg as an HTML email. The returned MessageID is the RFC 822
// Message-ID header, which later replies reference.
func (s *Sender) Send(ctx context.Context, msg messaging.Message) (messaging.Result, error) {
	if strings.TrimSpace(msg.To) == "" {
		return messaging.Result{}, messaging.ErrNoRecipient
	}
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx); err != nil {
			return messaging.Result{}, err
		}
	}

	messageID := newMessageID(s.from)
	reqBody := sendRequest{Raw: BuildRaw(s.from, msg, messageID, s.now())}
	if msg.Reply != nil {
		reqBody.ThreadID = msg.Reply.ThreadID
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return messaging.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(payload))
	if err != nil {
		return messaging.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return messaging.Result{}, fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return messaging.Result{}, err
	}
	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return messaging.Result{}, fmt.Errorf("gmail http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return messaging.Result{}, fmt.Errorf("gmail response parse: %w", err)
	}
	if parsed.Error != nil {
		return messaging.Result{}, fmt.Errorf("gmail http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Status)
	}
	if resp.StatusCode >= 400 {
		return messaging.Result{}, fmt.Errorf("gmail http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if s.limiter != nil {
		s.limiter.Record(ctx)
	}
	telemetry.Info("gmail.sent", map[string]any{
		"gmail_id":  parsed.ID,
		"thread_id": parsed.ThreadID,
		"reply":     msg.Reply != nil,
	})
	return messaging.Result{
		MessageID:  messageID,
		ThreadID:   parsed.ThreadID,
		ExternalID: parsed.ID,
	}, nil
}

// BuildRaw returns the base64url encoded RFC 822 message Gmail expects.
func BuildRaw(from string, msg messaging.Message, messageID string, date time.Time) string {
	var b strings.Builder
	writeHeader(&b, "From", from)
	writeHeader(&b, "To", msg.To)
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "Date", date.UTC().Format(time.RFC1123Z))
	writeHeader(&b, "Message-ID", messageID)
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", "text/html; charset=utf-8")
	if msg.Reply != nil && msg.Reply.InReplyTo != "" {
		refs := msg.Reply.References
		if refs == "" {
			refs = msg.Reply.InReplyTo
		}
		writeHeader(&b, "In-Reply-To", msg.Reply.InReplyTo)
		writeHeader(&b, "References", refs)
	}
	b.WriteString("\r\n")
	b.WriteString(messaging.HTMLBody(msg.Body))
	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}

func writeHeader(b *strings.Builder, name, value string) {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

func newMessageID(from string) string {
	domain := "docchaser.local"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = strings.Trim(d, "<> ")
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
