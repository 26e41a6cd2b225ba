package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"
)

const mailgunDefaultBaseURL = "https://api.mailgun.net/v3"

// maxErrorBodyBytes caps how much of a rejection body is read back for
// reporting.
const maxErrorBodyBytes = 4096

// MailgunClient sends messages through the Mailgun HTTP API as a multipart
// POST with the attachment streamed from disk.
type MailgunClient struct {
	baseURL string
	domain  string
	apiKey  string
	httpc   *http.Client
}

// NewMailgunClient creates a client for the given Mailgun domain. baseURL is
// optional and exists for tests; empty selects the public API endpoint.
func NewMailgunClient(domain, apiKey, baseURL string) *MailgunClient {
	if baseURL == "" {
		baseURL = mailgunDefaultBaseURL
	}
	return &MailgunClient{
		baseURL: baseURL,
		domain:  domain,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *MailgunClient) Send(ctx context.Context, msg Message) error {
	file, err := os.Open(msg.AttachmentPath)
	if err != nil {
		return fmt.Errorf("opening attachment: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"from":    msg.From,
		"to":      msg.To,
		"subject": msg.Subject(),
		"text":    msg.BodyText(),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("building request: %w", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="attachment"; filename=%q`, msg.AttachmentName))
	header.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("reading attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("posting to mailgun: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if resp.StatusCode != http.StatusOK {
		slog.Error("mailgun rejected message",
			"status", resp.StatusCode,
			"to", msg.To,
			"body", string(respBody),
		)
		return &SendError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	slog.Info("mail sent", "to", msg.To, "attachment", msg.AttachmentName)
	return nil
}
