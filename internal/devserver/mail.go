// ABOUTME: Invitation e-mail rendering and delivery for the dev server
// ABOUTME: Renders Markdown with goldmark; the default mailer only logs the link

package devserver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
)

// Message is a rendered e-mail.
type Message struct {
	To       string
	Subject  string
	Markdown string
	HTML     string
	Link     string // invitation link contained in the body
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// invitationData fills the invitation template.
type invitationData struct {
	Username  string
	Role      string
	InvitedBy string
	Link      string
	ExpiresAt time.Time
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`# You're invited to PromptPal Admin

Hi **{{.Username}}**,

{{if .InvitedBy}}{{.InvitedBy}} has invited you{{else}}You have been invited{{end}} to join the PromptPal admin console as **{{.Role}}**.

[Accept your invitation]({{.Link}})

This link can be used once and expires on {{.ExpiresAt.Format "Jan 2, 2006 at 15:04 MST"}}.
If you were not expecting this invitation you can ignore this message.
`))

// renderInvitation builds the invitation message for data.
func renderInvitation(to string, data invitationData) (Message, error) {
	var md bytes.Buffer
	if err := invitationTemplate.Execute(&md, data); err != nil {
		return Message{}, fmt.Errorf("rendering invitation: %w", err)
	}

	var html bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &html); err != nil {
		return Message{}, fmt.Errorf("converting invitation markdown: %w", err)
	}

	return Message{
		To:       to,
		Subject:  "You're invited to PromptPal Admin",
		Markdown: md.String(),
		HTML:     html.String(),
		Link:     data.Link,
	}, nil
}

// LogMailer logs invitation links instead of sending mail.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{logger: slog.Default().With("component", "mailer")}
}

// Send logs the recipient and the invitation link.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("invitation mail", "to", msg.To, "subject", msg.Subject, "link", msg.Link)
	return nil
}

// MemoryMailer keeps sent messages in memory.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
}

// Send records msg.
func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of every recorded message.
func (m *MemoryMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// LastTo returns the most recent message sent to addr.
func (m *MemoryMailer) LastTo(addr string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			return m.sent[i], true
		}
	}
	return Message{}, false
}
