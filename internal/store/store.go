package store

import (
	"context"
	"errors"

	"github.com/telepost-io/telepost/internal/models"
)

// ErrPersist indicates the durable write failed. Backends that keep an
// in-memory copy still apply the update before returning it, so the process
// stays correct for its lifetime and only durability is lost.
var ErrPersist = errors.New("settings persist failed")

// SettingsStore is the single source of truth for per-user settings. User IDs
// are canonical strings; callers must normalize numeric identifiers before
// reaching the store.
type SettingsStore interface {
	// GetUserSettings returns the settings bag for the user. Absence is not an
	// error: an empty bag is returned for unknown users.
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)

	// PutUserSettings replaces the user's bag and persists it before
	// returning. A returned error wrapping ErrPersist means the durable write
	// failed.
	PutUserSettings(ctx context.Context, userID string, settings *models.UserSettings) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
