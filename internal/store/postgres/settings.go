package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/telepost-io/telepost/internal/models"
	"github.com/telepost-io/telepost/internal/store"
)

// SettingsStore persists per-user settings in a user_settings table with the
// receiver registry as a jsonb column.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var (
		senderAddress string
		receiversJSON []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sender_address, receivers
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&senderAddress, &receiversJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserSettings{Receivers: make(map[string]string)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user settings: %w", err)
	}

	receivers := make(map[string]string)
	if len(receiversJSON) > 0 {
		if err := json.Unmarshal(receiversJSON, &receivers); err != nil {
			return nil, fmt.Errorf("decoding receivers for user %s: %w", userID, err)
		}
	}

	return &models.UserSettings{
		SenderAddress: senderAddress,
		Receivers:     receivers,
	}, nil
}

func (s *SettingsStore) PutUserSettings(ctx context.Context, userID string, settings *models.UserSettings) error {
	receiversJSON, err := json.Marshal(settings.Receivers)
	if err != nil {
		return fmt.Errorf("encoding receivers for user %s: %w", userID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_settings (public_id, user_id, sender_address, receivers)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET sender_address = EXCLUDED.sender_address,
		     receivers = EXCLUDED.receivers,
		     updated_at = now()`,
		uuid.New(), userID, settings.SenderAddress, receiversJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersist, err)
	}
	return nil
}

func (s *SettingsStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SettingsStore) Close() error {
	return s.db.Close()
}
