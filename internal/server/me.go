package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/services"
)

// SessionRunner performs Spotify operations for a session. Implemented by [services.SessionClient].
type SessionRunner interface {
	Do(ctx context.Context, sessionID string, op services.Operation) (payload.Document, error)
}

// SpotifyHandler proxies the current user's Spotify resources.
//
// Every route needs the session cookie. Provider payloads are passed through unchanged.
type SpotifyHandler struct {
	sessions SessionRunner
}

// NewSpotifyHandler creates a SpotifyHandler.
func NewSpotifyHandler(sessions SessionRunner) *SpotifyHandler {
	return &SpotifyHandler{sessions: sessions}
}

// Routes implements [Handler].
func (h *SpotifyHandler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/api/me", h.me},
		{http.MethodGet, "/api/me/playlists", h.playlists},
		{http.MethodPost, "/api/me/playlists", h.createPlaylist},
		{http.MethodGet, "/api/me/playlists/{id}/items", h.playlistItems},
		{http.MethodGet, "/api/search", h.search},
		{http.MethodPost, "/api/playlists/{id}/items", h.addPlaylistItems},
		{http.MethodPut, "/api/library", h.saveToLibrary},
		{http.MethodDelete, "/api/library", h.removeFromLibrary},
	}
}

// proxy authenticates the request, then builds and runs the operation.
func (h *SpotifyHandler) proxy(w http.ResponseWriter, r *http.Request, build func() (services.Operation, error)) {
	session, ok := sessionID(r)
	if !ok {
		writeError(w, services.NotAuthorized(nil))
		return
	}

	op, err := build()
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.sessions.Do(r.Context(), session, op)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		doc = payload.Document{}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *SpotifyHandler) me(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func() (services.Operation, error) {
		return services.CurrentUserRequest(), nil
	})
}

func (h *SpotifyHandler) playlists(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func() (services.Operation, error) {
		limit, offset, err := page(r, 10, 10)
		if err != nil {
			return nil, err
		}
		return services.MyPlaylistsRequest(limit, offset), nil
	})
}

func (h *SpotifyHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func() (services.Operation, error) {
		body, err := readBody(w, r)
		if err != nil {
			return nil, err
		}

		name, _ := body.TrimmedString("name")
		if name == "" {
			return nil, invalid("Playlist name is required")
		}

		op := services.CreatePlaylist{Name: name}
		if desc, ok := body.String("description"); ok {
			if desc = strings.TrimSpace(desc); desc != "" {
				op.Description = &desc
			}
		}
		if v, present := body["public"]; present && v != nil {
			public, ok := v.(bool)
			if !ok {
				return nil, invalid("public must be a boolean")
			}
			op.Public = public
		}
		return op, nil
	})
}

func (h *SpotifyHandler) playlistItems(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func() (services.Operation, error) {
		limit, offset, err := page(r, 25, 50)
		if err != nil {
			return nil, err
		}
		return services.PlaylistItemsRequest(r.PathValue("id"), limit, offset), nil
	})
}

func (h *SpotifyHandler) search(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func() (services.Operation, error) {
		q := r.URL.Query()
		query := q.Get("q")
		if query == "" {
			return nil, invalid("q is required")
		}
		if t := q.Get("type"); t != "" && t != "track" {
			return nil, invalid("type must be track")
		}

		limit, offset, err := page(r, 10, 10)
		if err != nil {
			return nil, err
		}
		return services.SearchTracksRequest(query, limit, offset), nil
	})
}

func (h *SpotifyHandler) addPlaylistItems(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func() (services.Operation, error) {
		body, err := readBody(w, r)
		if err != nil {
			return nil, err
		}
		items, err := uris(body, "At least one track URI is required")
		if err != nil {
			return nil, err
		}
		return services.AddPlaylistItemsRequest(r.PathValue("id"), items), nil
	})
}

func (h *SpotifyHandler) saveToLibrary(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.library(w, r, services.SaveToLibraryRequest))
}

func (h *SpotifyHandler) removeFromLibrary(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, h.library(w, r, services.RemoveFromLibraryRequest))
}

func (h *SpotifyHandler) library(w http.ResponseWriter, r *http.Request, request func([]string) services.Request) func() (services.Operation, error) {
	return func() (services.Operation, error) {
		body, err := readBody(w, r)
		if err != nil {
			return nil, err
		}
		items, err := uris(body, "At least one Spotify URI is required")
		if err != nil {
			return nil, err
		}
		return request(items), nil
	}
}
