// Package settings provides typed access to the per-user settings bag and
// canonicalizes user identifiers at the store boundary.
package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/telepost-io/telepost/internal/models"
	"github.com/telepost-io/telepost/internal/store"
)

// UserKey converts a numeric chat user ID to the canonical string form used
// as the store key. Every store access goes through this, so numeric and
// string representations of the same user never diverge.
func UserKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Service wraps the settings store with typed accessors and process-wide
// fallbacks.
type Service struct {
	store         store.SettingsStore
	defaultSender string
}

func NewService(st store.SettingsStore, defaultSender string) *Service {
	return &Service{
		store:         st,
		defaultSender: defaultSender,
	}
}

// Get returns the user's settings bag, empty if none stored.
func (s *Service) Get(ctx context.Context, userID int64) (*models.UserSettings, error) {
	settings, err := s.store.GetUserSettings(ctx, UserKey(userID))
	if err != nil {
		return nil, fmt.Errorf("loading settings for user %d: %w", userID, err)
	}
	return settings, nil
}

// Put replaces the user's settings bag and persists it.
func (s *Service) Put(ctx context.Context, userID int64, settings *models.UserSettings) error {
	return s.store.PutUserSettings(ctx, UserKey(userID), settings)
}

// SenderAddress resolves the From address for the user, falling back to the
// process-wide default sender. Empty means no sender is configured at all.
func (s *Service) SenderAddress(ctx context.Context, userID int64) (string, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if settings.SenderAddress != "" {
		return settings.SenderAddress, nil
	}
	return s.defaultSender, nil
}

// SetSenderAddress stores the user's sender address.
func (s *Service) SetSenderAddress(ctx context.Context, userID int64, address string) error {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	settings.SenderAddress = address
	return s.Put(ctx, userID, settings)
}
