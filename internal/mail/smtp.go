package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
)

// SMTPClient delivers messages over plain SMTP with PlainAuth, assembling the
// attachment as a base64 MIME part.
type SMTPClient struct {
	host string
	port int
	user string
	pass string
}

// NewSMTPClient creates a new SMTPClient with the given SMTP server
// configuration.
func NewSMTPClient(host string, port int, user, pass string) *SMTPClient {
	return &SMTPClient{
		host: host,
		port: port,
		user: user,
		pass: pass,
	}
}

func (c *SMTPClient) Send(ctx context.Context, msg Message) error {
	data, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		return fmt.Errorf("opening attachment: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	const boundary = "telepost-attachment-boundary"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject())
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(msg.BodyText())
	buf.WriteString("\r\n\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: application/octet-stream\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", msg.AttachmentName)

	encoded := base64.StdEncoding.EncodeToString(data)
	// RFC 2045 line length limit.
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	fmt.Fprintf(&buf, "\r\n--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	auth := smtp.PlainAuth("", c.user, c.pass, c.host)

	if err := smtp.SendMail(addr, auth, msg.From, []string{msg.To}, buf.Bytes()); err != nil {
		return fmt.Errorf("sending via smtp: %w", err)
	}
	return nil
}
