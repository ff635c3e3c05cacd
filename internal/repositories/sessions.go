package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/shared"
)

// SessionRepository persists OAuth token sets keyed by session id.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns the token set stored for sessionID, or nil when the session is unknown.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (models.TokenSet, error) {
	var raw string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT token_json FROM sessions WHERE session_id = ?", sessionID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: failed to read session: %v", shared.ErrStore, err)
		}
		return nil
	})
	if err != nil || raw == "" {
		return nil, err
	}

	doc, err := payload.DecodeDocument([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: stored token set is corrupt: %v", shared.ErrStore, err)
	}
	return models.TokenSet(doc), nil
}

// Store saves tokens for sessionID, replacing any previous set.
func (r *SessionRepository) Store(ctx context.Context, sessionID string, tokens models.TokenSet) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode token set: %w", err)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO sessions (session_id, token_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			token_json = excluded.token_json,
			updated_at = excluded.updated_at
	`

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, sessionID, string(data), now, now); err != nil {
			return fmt.Errorf("%w: failed to store session: %v", shared.ErrStore, err)
		}
		return nil
	})
}

// Clear removes the token set of sessionID. Clearing an unknown session is not an error.
func (r *SessionRepository) Clear(ctx context.Context, sessionID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("%w: failed to clear session: %v", shared.ErrStore, err)
		}
		return nil
	})
}
