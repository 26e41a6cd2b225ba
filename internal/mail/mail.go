// Package mail sends a staged document as an email attachment. Backends are
// selected at startup; all of them implement Mailer.
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// Message describes one outbound email with a single file attachment. The
// attachment is read from AttachmentPath but displayed to the recipient as
// AttachmentName, the original upload name.
type Message struct {
	From           string
	To             string
	AttachmentPath string
	AttachmentName string
}

// Subject returns the subject line for the message.
func (m Message) Subject() string {
	return "File from Bot: " + m.AttachmentName
}

// BodyText returns the plain-text body for the message.
func (m Message) BodyText() string {
	return "Document attached: " + m.AttachmentName
}

// Mailer delivers a message. A nil return means the transport accepted the
// message; it is not a delivery guarantee.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendError is a transport-level rejection: the mail API answered, but with a
// non-success status.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mail transport rejected message: status %d: %s", e.StatusCode, e.Body)
}

// NoopMailer logs the message and reports success. Used for dry runs.
type NoopMailer struct{}

func (NoopMailer) Send(_ context.Context, msg Message) error {
	slog.Info("noop mailer: dropping message",
		"from", msg.From,
		"to", msg.To,
		"attachment", msg.AttachmentName,
	)
	return nil
}
