package services

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/shared"
)

// SessionClient performs Spotify operations on behalf of a stored session.
//
// An authorization failure triggers one refresh and one retry. A second failure, a set without
// an access token or a set without a refresh token clears the session and reports [NotAuthorized].
type SessionClient struct {
	api       *SpotifyClient
	store     TokenStore
	refresher TokenRefresher
	logger    *log.Logger
}

// NewSessionClient creates a SessionClient.
func NewSessionClient(api *SpotifyClient, store TokenStore, refresher TokenRefresher, logger *log.Logger) *SessionClient {
	return &SessionClient{
		api:       api,
		store:     store,
		refresher: refresher,
		logger:    shared.WithLogger(logger, "component", "session"),
	}
}

// Do executes op with the session's access token.
func (c *SessionClient) Do(ctx context.Context, sessionID string, op Operation) (payload.Document, error) {
	tokens, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, NotAuthorized(nil)
	}

	accessToken, ok := tokens.AccessToken()
	if !ok {
		return nil, c.invalidate(ctx, sessionID, nil)
	}

	doc, err := op.Execute(ctx, c.api, accessToken)
	if err == nil || !IsAuthError(err) {
		return doc, err
	}

	refreshToken, ok := tokens.RefreshToken()
	if !ok {
		return nil, c.invalidate(ctx, sessionID, shared.ErrNoRefreshToken)
	}

	refreshed, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		return nil, err
	}

	merged := tokens.Merge(refreshed)
	if err := c.store.Store(ctx, sessionID, merged); err != nil {
		return nil, err
	}
	c.logger.Info("refreshed access token")

	accessToken, ok = merged.AccessToken()
	if !ok {
		return nil, c.invalidate(ctx, sessionID, nil)
	}

	doc, err = op.Execute(ctx, c.api, accessToken)
	if err != nil && IsAuthError(err) {
		return nil, c.invalidate(ctx, sessionID, err)
	}
	return doc, err
}

// Logout clears the session's stored tokens.
func (c *SessionClient) Logout(ctx context.Context, sessionID string) error {
	return c.store.Clear(ctx, sessionID)
}

func (c *SessionClient) invalidate(ctx context.Context, sessionID string, cause error) error {
	if err := c.store.Clear(ctx, sessionID); err != nil {
		return err
	}
	return NotAuthorized(cause)
}
