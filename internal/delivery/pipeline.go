// Package delivery runs one send attempt end to end: validate preconditions,
// materialize the pending document into staging, hand it to the mailer, and
// clean up. Every exit path yields a reported Result; nothing escapes as a
// fault.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/telepost-io/telepost/internal/mail"
	"github.com/telepost-io/telepost/internal/recipients"
	"github.com/telepost-io/telepost/internal/session"
	"github.com/telepost-io/telepost/internal/settings"
)

// maxErrorDetail caps how much transport error text is echoed back to the
// user.
const maxErrorDetail = 150

// Fetcher materializes document bytes behind an opaque file ID into a local
// path.
type Fetcher interface {
	DownloadFile(ctx context.Context, fileID, destPath string) error
}

// Result is the outcome of one delivery attempt.
type Result struct {
	OK      bool
	Message string
}

func failure(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Pipeline orchestrates delivery attempts.
type Pipeline struct {
	settings   *settings.Service
	recipients *recipients.Service
	session    *session.State
	fetcher    Fetcher
	mailer     mail.Mailer
	staging    *Staging
}

func NewPipeline(
	st *settings.Service,
	rec *recipients.Service,
	sess *session.State,
	fetcher Fetcher,
	mailer mail.Mailer,
	staging *Staging,
) *Pipeline {
	return &Pipeline{
		settings:   st,
		recipients: rec,
		session:    sess,
		fetcher:    fetcher,
		mailer:     mailer,
		staging:    staging,
	}
}

// Send runs one delivery attempt for the user's pending upload to the
// receiver behind label. notify, when non-nil, receives a progress message
// before the slow network steps begin. Precondition failures leave the
// pending upload in place; once the attempt starts the upload is consumed
// whatever the outcome.
func (p *Pipeline) Send(ctx context.Context, userID int64, label string, notify func(string)) Result {
	// Validating: no side effects and no network before this gate passes.
	sender, err := p.settings.SenderAddress(ctx, userID)
	if err != nil {
		return failure("Error reading your settings: %v", err)
	}
	if sender == "" {
		return failure("Set sender with /setsender first.")
	}

	recipient, err := p.recipients.Resolve(ctx, userID, label)
	if errors.Is(err, recipients.ErrNotFound) {
		return failure("No receiver for %s. Use /newreceiver.", strings.ToLower(label))
	}
	if err != nil {
		return failure("Error reading your settings: %v", err)
	}

	up, ok := p.session.TakePending(userID)
	if !ok {
		return failure("Send a document first.")
	}

	if notify != nil {
		notify(fmt.Sprintf("Sending %s to %s...", up.FileName, recipient))
	}

	// Fetching. The staged file is removed on every exit from here on, and
	// removal is a no-op when the fetch never created it.
	path := p.staging.Path(userID, up.FileName)
	defer func() {
		if err := p.staging.Remove(path); err != nil {
			slog.Error("failed to remove staged file", "path", path, "error", err)
		}
	}()

	if err := p.fetcher.DownloadFile(ctx, up.FileID, path); err != nil {
		slog.Error("document fetch failed", "user_id", userID, "file", up.FileName, "error", err)
		return failure("Error: could not download %s: %s", up.FileName, truncateEscape(err.Error()))
	}

	// Sending.
	err = p.mailer.Send(ctx, mail.Message{
		From:           sender,
		To:             recipient,
		AttachmentPath: path,
		AttachmentName: up.FileName,
	})

	var sendErr *mail.SendError
	switch {
	case err == nil:
		slog.Info("document delivered", "user_id", userID, "file", up.FileName, "to", recipient)
		return Result{OK: true, Message: fmt.Sprintf("File sent successfully to %s!", recipient)}
	case errors.As(err, &sendErr):
		return failure("Error sending file: %d - `%s`", sendErr.StatusCode, truncateEscape(sendErr.Body))
	case errors.Is(err, os.ErrNotExist):
		return failure("Error: Could not find file %s to send.", up.FileName)
	default:
		slog.Error("mail send failed", "user_id", userID, "to", recipient, "error", err)
		return failure("Error sending email: %s", truncateEscape(err.Error()))
	}
}

// truncateEscape prepares transport error text for display: cap the length
// and escape the characters the chat renders as formatting.
func truncateEscape(s string) string {
	if len(s) > maxErrorDetail {
		s = s[:maxErrorDetail]
	}
	r := strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`")
	return r.Replace(s)
}
