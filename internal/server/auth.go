package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/services"
	"github.com/desertthunder/trackfx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	stateCookie    = "spotify_oauth_state"
	verifierCookie = "spotify_pkce_verifier"
	flowMaxAge     = 600
)

// CodeExchanger trades an authorization code and its PKCE verifier for tokens.
// Implemented by [services.OAuthRefresher].
type CodeExchanger interface {
	Exchange(ctx context.Context, code, verifier string) (models.TokenSet, error)
}

// AuthHandler serves the public config and the Spotify login, callback and logout routes.
//
// The login redirect carries an S256 PKCE challenge. Its state and verifier live in short-lived
// cookies that the callback checks before exchanging the code.
type AuthHandler struct {
	spotify   shared.SpotifyConfig
	oauth     *oauth2.Config
	exchanger CodeExchanger
	tokens    services.TokenStore
	frontend  string
	secure    bool
	logger    *log.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(cfg *shared.Config, exchanger CodeExchanger, tokens services.TokenStore, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		spotify:   cfg.Credentials.Spotify,
		oauth:     services.NewOAuthConfig(cfg.Credentials.Spotify),
		exchanger: exchanger,
		tokens:    tokens,
		frontend:  cfg.Server.FrontendURL,
		secure:    cfg.Server.SecureCookies,
		logger:    shared.WithLogger(logger, "component", "auth"),
	}
}

// Routes implements [Handler].
func (h *AuthHandler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/api/config", h.config},
		{http.MethodGet, "/auth/spotify/login", h.login},
		{http.MethodGet, "/api/auth/spotify/login", h.login},
		{http.MethodGet, "/auth/spotify/callback", h.callback},
		{http.MethodGet, "/auth/logout", h.logout},
		{http.MethodGet, "/api/auth/logout", h.logout},
	}
}

func (h *AuthHandler) config(w http.ResponseWriter, r *http.Request) {
	if err := h.spotify.Validate(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"spotify_client_id":     h.spotify.ClientID,
		"spotify_redirect_uri":  h.spotify.RedirectURI,
		"spotify_scopes":        strings.Join(h.spotify.ScopeList(), " "),
		"spotify_authorize_url": h.oauth.Endpoint.AuthURL,
		"spotify_token_url":     h.oauth.Endpoint.TokenURL,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := h.spotify.Validate(); err != nil {
		writeError(w, err)
		return
	}

	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()
	h.setCookie(w, stateCookie, state, flowMaxAge)
	h.setCookie(w, verifierCookie, verifier, flowMaxAge)

	http.Redirect(w, r, h.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), http.StatusFound)
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeDetail(w, http.StatusBadRequest, "Missing authorization code")
		return
	}
	state := q.Get("state")

	// Without a state cookie the login was started by the frontend, which finishes the exchange.
	expected, err := r.Cookie(stateCookie)
	if err != nil || expected.Value == "" {
		http.Redirect(w, r, h.frontendURL(url.Values{"code": {code}, "state": {state}}), http.StatusFound)
		return
	}
	if state != expected.Value {
		writeDetail(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	verifier, err := r.Cookie(verifierCookie)
	if err != nil || verifier.Value == "" {
		writeDetail(w, http.StatusBadRequest, "Missing PKCE verifier")
		return
	}

	tokens, err := h.exchanger.Exchange(r.Context(), code, verifier.Value)
	if err != nil {
		h.logger.Warn("code exchange failed", "error", err)
		writeError(w, err)
		return
	}

	session := shared.GenerateID()
	if err := h.tokens.Store(r.Context(), session, tokens); err != nil {
		h.logger.Error("failed to store session", "error", err)
		writeError(w, err)
		return
	}
	h.logger.Info("session created", "session", session)

	h.setCookie(w, stateCookie, "", -1)
	h.setCookie(w, verifierCookie, "", -1)
	h.setCookie(w, SessionCookie, session, 0)
	http.Redirect(w, r, h.frontendURL(nil), http.StatusFound)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := sessionID(r); ok {
		if err := h.tokens.Clear(r.Context(), session); err != nil {
			writeError(w, err)
			return
		}
	}

	h.setCookie(w, SessionCookie, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) frontendURL(q url.Values) string {
	base := strings.TrimRight(h.frontend, "/") + "/"
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}
