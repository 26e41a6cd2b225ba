// Package bot maps inbound chat updates to settings, registry, session, and
// delivery operations, and owns the receive loop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/telepost-io/telepost/internal/delivery"
	"github.com/telepost-io/telepost/internal/ratelimit"
	"github.com/telepost-io/telepost/internal/recipients"
	"github.com/telepost-io/telepost/internal/session"
	"github.com/telepost-io/telepost/internal/settings"
	"github.com/telepost-io/telepost/internal/store"
	"github.com/telepost-io/telepost/internal/telegram"
)

// conflictRetryDelay is how long the receive loop waits after the transport
// reports a conflicting poller before trying again.
const conflictRetryDelay = 5 * time.Second

const helpText = `Welcome! Here's how to use me:

Setup:
1. /setsender <your_email@example.com> - Set your sender email.

Receivers:
2. /newreceiver <label> <email> - Add a recipient.
3. /viewreceivers - List your recipients.
4. /removereceiver <label> - Remove a recipient.

Sending:
5. Send me a document.
6. /sendto <label> - Send last document to a recipient.`

// Messenger is the chat transport the dispatcher receives from and replies
// through.
type Messenger interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Options tunes the dispatcher. Zero values select defaults.
type Options struct {
	MaxUploadBytes int64
	PollTimeoutSec int
}

// Dispatcher routes inbound updates to command handlers.
type Dispatcher struct {
	messenger      Messenger
	settings       *settings.Service
	recipients     *recipients.Service
	session        *session.State
	pipeline       *delivery.Pipeline
	limiter        *ratelimit.Limiter
	maxUploadBytes int64
	pollTimeoutSec int
}

func NewDispatcher(
	messenger Messenger,
	st *settings.Service,
	rec *recipients.Service,
	sess *session.State,
	pipeline *delivery.Pipeline,
	limiter *ratelimit.Limiter,
	opts Options,
) *Dispatcher {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 30 << 20
	}
	pollTimeout := opts.PollTimeoutSec
	if pollTimeout <= 0 {
		pollTimeout = 30
	}

	return &Dispatcher{
		messenger:      messenger,
		settings:       st,
		recipients:     rec,
		session:        sess,
		pipeline:       pipeline,
		limiter:        limiter,
		maxUploadBytes: maxUpload,
		pollTimeoutSec: pollTimeout,
	}
}

// Run polls the transport until ctx is cancelled. A transport conflict (two
// instances polling with one token) is waited out and retried indefinitely;
// any other receive error is returned to the caller and is fatal.
func (d *Dispatcher) Run(ctx context.Context) error {
	var offset int64

	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := d.messenger.GetUpdates(ctx, offset, d.pollTimeoutSec)
		if errors.Is(err, telegram.ErrConflict) {
			slog.Warn("another instance is polling, backing off", "delay", conflictRetryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(conflictRetryDelay):
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving updates: %w", err)
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			d.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate processes a single inbound update. It is the entry point for
// both the poll loop and the webhook receiver.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !d.limiter.Allow(userID) {
		slog.Warn("rate limited", "user_id", userID)
		return
	}

	switch {
	case msg.Document != nil:
		d.handleDocument(ctx, userID, chatID, msg.Document)
	case strings.HasPrefix(msg.Text, "/"):
		name, args := parseCommand(msg.Text)
		d.handleCommand(ctx, userID, chatID, name, args)
	}
}

// parseCommand splits "/cmd@botname a b" into "cmd" and ["a", "b"].
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

func (d *Dispatcher) handleCommand(ctx context.Context, userID, chatID int64, name string, args []string) {
	switch name {
	case "help", "start":
		d.reply(ctx, chatID, helpText)
	case "setsender":
		d.handleSetSender(ctx, userID, chatID, args)
	case "newreceiver":
		d.handleNewReceiver(ctx, userID, chatID, args)
	case "viewreceivers":
		d.handleViewReceivers(ctx, userID, chatID)
	case "removereceiver":
		d.handleRemoveReceiver(ctx, userID, chatID, args)
	case "sendto":
		d.handleSendTo(ctx, userID, chatID, args)
	default:
		slog.Info("ignoring unknown command", "user_id", userID, "command", name)
	}
}

func (d *Dispatcher) handleDocument(ctx context.Context, userID, chatID int64, doc *telegram.Document) {
	if doc.FileSize > d.maxUploadBytes {
		d.reply(ctx, chatID, fmt.Sprintf("File too large! Max size is %d MB.", d.maxUploadBytes>>20))
		slog.Warn("upload exceeds size cap", "user_id", userID, "file", doc.FileName, "size", doc.FileSize)
		return
	}

	d.session.SetPending(userID, doc.FileID, doc.FileName)
	d.reply(ctx, chatID, fmt.Sprintf("Got %s. Use /sendto <label>.", doc.FileName))
	slog.Info("stored pending upload", "user_id", userID, "file", doc.FileName)
}

func (d *Dispatcher) handleSetSender(ctx context.Context, userID, chatID int64, args []string) {
	if len(args) != 1 {
		d.reply(ctx, chatID, "Usage: /setsender <email>")
		return
	}
	email := args[0]
	if !recipients.ValidAddress(email) {
		d.reply(ctx, chatID, fmt.Sprintf("%s is not a valid email.", email))
		return
	}

	err := d.settings.SetSenderAddress(ctx, userID, email)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		d.reply(ctx, chatID, "Error saving your settings, try again.")
		return
	}
	if errors.Is(err, store.ErrPersist) {
		slog.Error("settings not durable", "user_id", userID, "error", err)
	}
	d.reply(ctx, chatID, fmt.Sprintf("Sender set to: %s", email))
}

func (d *Dispatcher) handleNewReceiver(ctx context.Context, userID, chatID int64, args []string) {
	if len(args) != 2 {
		d.reply(ctx, chatID, "Usage: /newreceiver <label> <email>")
		return
	}

	label, err := d.recipients.AddOrUpdate(ctx, userID, args[0], args[1])
	switch {
	case errors.Is(err, recipients.ErrInvalidLabel):
		d.reply(ctx, chatID, "Label must be alphanumeric.")
		return
	case errors.Is(err, recipients.ErrInvalidAddress):
		d.reply(ctx, chatID, fmt.Sprintf("%s is not a valid email.", args[1]))
		return
	case err != nil && !errors.Is(err, store.ErrPersist):
		d.reply(ctx, chatID, "Error saving your settings, try again.")
		return
	case errors.Is(err, store.ErrPersist):
		slog.Error("settings not durable", "user_id", userID, "error", err)
	}
	d.reply(ctx, chatID, fmt.Sprintf("Added %s: %s", label, args[1]))
}

func (d *Dispatcher) handleViewReceivers(ctx context.Context, userID, chatID int64) {
	receivers, err := d.recipients.List(ctx, userID)
	if err != nil {
		d.reply(ctx, chatID, "Error reading your settings, try again.")
		return
	}
	if len(receivers) == 0 {
		d.reply(ctx, chatID, "No receivers saved. Use /newreceiver.")
		return
	}

	lines := []string{"Your receivers:"}
	for _, r := range receivers {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Label, r.Address))
	}
	d.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func (d *Dispatcher) handleRemoveReceiver(ctx context.Context, userID, chatID int64, args []string) {
	if len(args) != 1 {
		d.reply(ctx, chatID, "Usage: /removereceiver <label>")
		return
	}

	address, err := d.recipients.Remove(ctx, userID, args[0])
	switch {
	case errors.Is(err, recipients.ErrNotFound):
		d.reply(ctx, chatID, fmt.Sprintf("Label %s not found. See /viewreceivers.", strings.ToLower(args[0])))
		return
	case err != nil && !errors.Is(err, store.ErrPersist):
		d.reply(ctx, chatID, "Error saving your settings, try again.")
		return
	case errors.Is(err, store.ErrPersist):
		slog.Error("settings not durable", "user_id", userID, "error", err)
	}
	d.reply(ctx, chatID, fmt.Sprintf("Removed %s: %s", strings.ToLower(args[0]), address))
}

func (d *Dispatcher) handleSendTo(ctx context.Context, userID, chatID int64, args []string) {
	if len(args) != 1 {
		d.reply(ctx, chatID, "Usage: /sendto <label>")
		return
	}

	result := d.pipeline.Send(ctx, userID, args[0], func(progress string) {
		d.reply(ctx, chatID, progress)
	})
	d.reply(ctx, chatID, result.Message)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.messenger.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}
