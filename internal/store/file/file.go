// Package file implements the settings store as a single JSON document on
// disk, the whole document rewritten on every change.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/telepost-io/telepost/internal/models"
	"github.com/telepost-io/telepost/internal/store"
)

// userRecord is the persisted shape of one user's settings.
type userRecord struct {
	SenderEmail string            `json:"sender_email,omitempty"`
	Receivers   map[string]string `json:"receivers,omitempty"`
}

// Store is a write-through JSON file store. All mutations hold a single
// writer lock for the read-modify-write-persist sequence, so concurrent sets
// for different users cannot lose updates.
type Store struct {
	path string

	mu    sync.Mutex
	users map[string]userRecord
}

// Open loads the settings file at path into memory. A missing file starts an
// empty store; a corrupt file is logged and discarded rather than refusing to
// start.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  filepath.Clean(path),
		users: make(map[string]userRecord),
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no settings file found, starting fresh", "path", s.path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, &s.users); err != nil {
		slog.Error("settings file is corrupt, starting fresh", "path", s.path, "error", err)
		s.users = make(map[string]userRecord)
		return s, nil
	}

	slog.Info("loaded settings", "path", s.path, "users", len(s.users))
	return s, nil
}

func (s *Store) GetUserSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.users[userID]
	settings := &models.UserSettings{
		SenderAddress: rec.SenderEmail,
		Receivers:     make(map[string]string, len(rec.Receivers)),
	}
	for label, addr := range rec.Receivers {
		settings.Receivers[label] = addr
	}
	return settings, nil
}

func (s *Store) PutUserSettings(_ context.Context, userID string, settings *models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := userRecord{
		SenderEmail: settings.SenderAddress,
		Receivers:   make(map[string]string, len(settings.Receivers)),
	}
	for label, addr := range settings.Receivers {
		rec.Receivers[label] = addr
	}
	s.users[userID] = rec

	if err := s.save(); err != nil {
		// In-memory state is already updated; only durability is lost.
		return fmt.Errorf("%w: %v", store.ErrPersist, err)
	}
	return nil
}

// save writes the whole document atomically via a temp file and rename.
// Callers must hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.users, "", "    ")
	if err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
