package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// NewOAuthConfig builds the Spotify authorization code client.
//
// Client credentials travel in the form body, so a public PKCE client needs no secret.
func NewOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	authURL, tokenURL := cfg.AuthorizeURL, cfg.TokenURL
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.ScopeList(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// OAuthRefresher implements [TokenRefresher] with the refresh_token grant.
type OAuthRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuthRefresher creates an OAuthRefresher. A nil client uses [http.DefaultClient].
func NewOAuthRefresher(config *oauth2.Config, client *http.Client) *OAuthRefresher {
	return &OAuthRefresher{config: config, httpClient: client}
}

// Refresh exchanges refreshToken for a new token set.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (models.TokenSet, error) {
	ctx = r.clientContext(ctx)

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, TokenError(err, "Spotify token endpoint unavailable")
	}
	return TokenSetFromOAuth(tok, time.Now()), nil
}

// Exchange trades an authorization code and its PKCE verifier for a token set.
func (r *OAuthRefresher) Exchange(ctx context.Context, code, verifier string) (models.TokenSet, error) {
	ctx = r.clientContext(ctx)

	tok, err := r.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, TokenError(err, "Spotify token endpoint unavailable")
	}
	return TokenSetFromOAuth(tok, time.Now()), nil
}

func (r *OAuthRefresher) clientContext(ctx context.Context) context.Context {
	if r.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
}

// TokenError converts an oauth2 failure into a [*SpotifyError].
//
// Rejections by the token endpoint are authorization failures carrying the envelope message.
// Transport failures are 502. Anything else, such as a response without an access token, is unauthorized.
func TokenError(err error, unavailable string) error {
	cause := fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		envelope, _ := payload.DecodeDocument(re.Body)
		msg := ExtractErrorMessage(envelope, msgNotAuthorized)
		return &SpotifyError{StatusCode: http.StatusUnauthorized, Message: msg, AuthError: true, Err: cause}
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return &SpotifyError{StatusCode: http.StatusBadGateway, Message: unavailable, Err: cause}
	}

	return NotAuthorized(cause)
}

// TokenSetFromOAuth flattens an oauth2 token into the mapping stored per session.
func TokenSetFromOAuth(tok *oauth2.Token, now time.Time) models.TokenSet {
	tokens := models.TokenSet{"access_token": tok.AccessToken}
	if tok.TokenType != "" {
		tokens["token_type"] = tok.TokenType
	}
	if tok.RefreshToken != "" {
		tokens["refresh_token"] = tok.RefreshToken
	}

	switch {
	case tok.ExpiresIn > 0:
		tokens["expires_in"] = tok.ExpiresIn
	case !tok.Expiry.IsZero():
		tokens["expires_in"] = int64(tok.Expiry.Sub(now).Seconds())
	}
	if !tok.Expiry.IsZero() {
		tokens["expires_at"] = tok.Expiry.Unix()
	}

	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		tokens["scope"] = scope
	}
	return tokens
}
