// Spotify Web API client
//
// Endpoint reference: https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/shared"
)

const (
	spotifyBaseURL     = "https://api.spotify.com"
	spotifyTrackPrefix = "spotify:track:"

	msgNotAuthorized  = "Not authorized"
	msgUnauthorized   = "Unauthorized Spotify token"
	msgRequestFailed  = "Spotify API request failed"
	msgUnavailable    = "Spotify API unavailable"
	msgInvalidJSON    = "Spotify API returned invalid JSON"
	msgInvalidPayload = "Spotify API returned invalid payload"
)

// SpotifyError is a failed Spotify request.
//
// StatusCode is the HTTP status, or 502 when Spotify could not be reached or returned an unreadable body.
type SpotifyError struct {
	StatusCode int
	Message    string
	AuthError  bool
	Err        error
}

func (e *SpotifyError) Error() string {
	return fmt.Sprintf("spotify: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap exposes [shared.ErrNotAuthorized] for authorization failures, [shared.ErrAPIRequest]
// otherwise, plus the underlying cause.
func (e *SpotifyError) Unwrap() []error {
	sentinel := shared.ErrAPIRequest
	if e.AuthError {
		sentinel = shared.ErrNotAuthorized
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// NotAuthorized returns the error reported for an unusable session.
func NotAuthorized(cause error) *SpotifyError {
	return &SpotifyError{StatusCode: http.StatusUnauthorized, Message: msgNotAuthorized, AuthError: true, Err: cause}
}

// IsAuthError reports whether err is a Spotify authorization failure.
func IsAuthError(err error) bool {
	var se *SpotifyError
	return errors.As(err, &se) && se.AuthError
}

// ExtractErrorMessage reads a human-readable message from a Spotify or accounts service error envelope.
//
// The first non-empty string among error.message, error_description, error, detail and message wins.
func ExtractErrorMessage(doc payload.Document, fallback string) string {
	if nested, ok := doc.Object("error"); ok {
		if msg, ok := nested.String("message"); ok && msg != "" {
			return msg
		}
	}

	for _, key := range []string{"error_description", "error", "detail", "message"} {
		if msg, ok := doc.String(key); ok && msg != "" {
			return msg
		}
	}

	return fallback
}

// SpotifyClient issues Spotify Web API requests with caller-supplied access tokens.
type SpotifyClient struct {
	api    *APIService
	logger *log.Logger
}

// NewSpotifyClient creates a client for the Web API at baseURL, defaulting to https://api.spotify.com.
func NewSpotifyClient(baseURL string, client *http.Client, logger *log.Logger) *SpotifyClient {
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	return &SpotifyClient{
		api:    NewAPIService(strings.TrimSuffix(baseURL, "/"), client),
		logger: shared.WithLogger(logger, "component", "spotify"),
	}
}

// Do performs r with a bearer token and decodes the response body as a JSON object.
func (c *SpotifyClient) Do(ctx context.Context, accessToken string, r Request) (payload.Document, error) {
	header := http.Header{"Authorization": []string{"Bearer " + accessToken}}

	resp, err := c.api.Send(ctx, r.Method, r.URL(), r.Body, header)
	if err != nil {
		c.logger.Debug("request failed", "method", r.Method, "path", r.Path, "error", err)
		return nil, &SpotifyError{StatusCode: http.StatusBadGateway, Message: msgUnavailable, Err: err}
	}

	if !resp.OK() {
		envelope, _ := payload.DecodeDocument(resp.Body)
		c.logger.Debug("request rejected", "method", r.Method, "path", r.Path, "status", resp.StatusCode)

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &SpotifyError{
				StatusCode: resp.StatusCode,
				Message:    ExtractErrorMessage(envelope, msgUnauthorized),
				AuthError:  true,
			}
		}
		return nil, &SpotifyError{StatusCode: resp.StatusCode, Message: ExtractErrorMessage(envelope, msgRequestFailed)}
	}

	doc, err := payload.DecodeDocument(resp.Body)
	if errors.Is(err, payload.ErrNotObject) {
		return nil, &SpotifyError{StatusCode: http.StatusBadGateway, Message: msgInvalidPayload, Err: err}
	}
	if err != nil {
		return nil, &SpotifyError{StatusCode: http.StatusBadGateway, Message: msgInvalidJSON, Err: err}
	}
	return doc, nil
}

// Track fetches a track by id.
func (c *SpotifyClient) Track(ctx context.Context, accessToken, trackID string) (payload.Document, error) {
	return c.Do(ctx, accessToken, TrackRequest(trackID))
}

// CurrentUser fetches the profile of the token's owner.
func (c *SpotifyClient) CurrentUser(ctx context.Context, accessToken string) (payload.Document, error) {
	return c.Do(ctx, accessToken, CurrentUserRequest())
}

// Request is a single Spotify Web API call. It implements [Operation].
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// URL returns the path with its encoded query string.
func (r Request) URL() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Execute implements [Operation].
func (r Request) Execute(ctx context.Context, api *SpotifyClient, accessToken string) (payload.Document, error) {
	return api.Do(ctx, accessToken, r)
}

// TrackRequest fetches /v1/tracks/{id}.
func TrackRequest(trackID string) Request {
	return Request{Method: http.MethodGet, Path: "/v1/tracks/" + url.PathEscape(trackID)}
}

// CurrentUserRequest fetches /v1/me.
func CurrentUserRequest() Request {
	return Request{Method: http.MethodGet, Path: "/v1/me"}
}

// MyPlaylistsRequest lists the current user's playlists.
func MyPlaylistsRequest(limit, offset int) Request {
	return Request{Method: http.MethodGet, Path: "/v1/me/playlists", Query: pageQuery(limit, offset)}
}

// PlaylistItemsRequest lists the tracks of a playlist.
func PlaylistItemsRequest(playlistID string, limit, offset int) Request {
	return Request{
		Method: http.MethodGet,
		Path:   "/v1/playlists/" + url.PathEscape(playlistID) + "/tracks",
		Query:  pageQuery(limit, offset),
	}
}

// SearchTracksRequest searches the catalog for tracks.
func SearchTracksRequest(query string, limit, offset int) Request {
	q := pageQuery(limit, offset)
	q.Set("q", query)
	q.Set("type", "track")
	return Request{Method: http.MethodGet, Path: "/v1/search", Query: q}
}

// AddPlaylistItemsRequest appends track URIs to a playlist.
func AddPlaylistItemsRequest(playlistID string, uris []string) Request {
	return Request{
		Method: http.MethodPost,
		Path:   "/v1/playlists/" + url.PathEscape(playlistID) + "/tracks",
		Body:   map[string]any{"uris": uris},
	}
}

// SaveToLibraryRequest saves tracks to the current user's library.
func SaveToLibraryRequest(uris []string) Request {
	return Request{Method: http.MethodPut, Path: "/v1/me/tracks", Body: map[string]any{"ids": TrackIDs(uris)}}
}

// RemoveFromLibraryRequest removes tracks from the current user's library.
func RemoveFromLibraryRequest(uris []string) Request {
	return Request{Method: http.MethodDelete, Path: "/v1/me/tracks", Body: map[string]any{"ids": TrackIDs(uris)}}
}

// TrackIDs converts spotify:track: URIs to bare track ids. Bare ids pass through and other URIs are dropped.
func TrackIDs(uris []string) []string {
	ids := make([]string, 0, len(uris))
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		switch {
		case strings.HasPrefix(uri, spotifyTrackPrefix):
			if id := strings.TrimPrefix(uri, spotifyTrackPrefix); id != "" {
				ids = append(ids, id)
			}
		case uri != "" && !strings.Contains(uri, ":"):
			ids = append(ids, uri)
		}
	}
	return ids
}

func pageQuery(limit, offset int) url.Values {
	return url.Values{"limit": []string{fmt.Sprint(limit)}, "offset": []string{fmt.Sprint(offset)}}
}

// CreatePlaylist creates a playlist owned by the current user.
//
// It resolves the user id from /v1/me and then posts to /v1/users/{id}/playlists.
type CreatePlaylist struct {
	Name        string
	Description *string
	Public      bool
}

// Execute implements [Operation].
func (p CreatePlaylist) Execute(ctx context.Context, api *SpotifyClient, accessToken string) (payload.Document, error) {
	profile, err := api.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	userID, ok := profile.TrimmedString("id")
	if !ok {
		return nil, &SpotifyError{StatusCode: http.StatusBadGateway, Message: "Spotify API returned invalid profile data"}
	}

	body := map[string]any{"name": p.Name, "public": p.Public}
	if p.Description != nil {
		body["description"] = *p.Description
	}

	return api.Do(ctx, accessToken, Request{
		Method: http.MethodPost,
		Path:   "/v1/users/" + url.PathEscape(userID) + "/playlists",
		Body:   body,
	})
}
