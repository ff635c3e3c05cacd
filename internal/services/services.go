// package services defines the clients and collaborators for the Spotify and MusicBrainz APIs
package services

import (
	"context"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/payload"
)

// Operation is a Spotify request performed with a given access token.
//
// [SessionClient] may execute an operation twice, once before and once after a token refresh.
type Operation interface {
	Execute(ctx context.Context, api *SpotifyClient, accessToken string) (payload.Document, error)
}

// TokenStore persists token sets per session.
//
// Get returns nil without an error when the session is unknown.
type TokenStore interface {
	Get(ctx context.Context, sessionID string) (models.TokenSet, error)
	Store(ctx context.Context, sessionID string, tokens models.TokenSet) error
	Clear(ctx context.Context, sessionID string) error
}

// TokenRefresher exchanges a refresh token for a new token set.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenSet, error)
}
