// MusicBrainz web service client
//
// Endpoint reference: https://musicbrainz.org/doc/MusicBrainz_API
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
	musicBrainzBaseURL = "https://musicbrainz.org"
	recordingIncludes  = "tags+genres+artist-credits+releases"
)

// LookupError is a failed MusicBrainz request.
//
// StatusCode is the HTTP status, or 0 when no response status exists (transport failure or unreadable body).
type LookupError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *LookupError) Error() string {
	if e.StatusCode == 0 {
		return "musicbrainz: " + e.Message
	}
	return fmt.Sprintf("musicbrainz: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap exposes [shared.ErrServiceUnavailable] and the underlying cause.
func (e *LookupError) Unwrap() []error {
	if e.Err != nil {
		return []error{shared.ErrServiceUnavailable, e.Err}
	}
	return []error{shared.ErrServiceUnavailable}
}

// MusicBrainzClient queries recordings from the MusicBrainz /ws/2 API.
type MusicBrainzClient struct {
	api       *APIService
	userAgent string
	throttle  *Throttle
	logger    *log.Logger
}

// NewMusicBrainzClient creates a client for the API at baseURL, defaulting to https://musicbrainz.org.
//
// Every request waits on throttle first. MusicBrainz rejects anonymous clients, so requests fail
// with [shared.ErrMissingConfig] while userAgent is empty.
func NewMusicBrainzClient(baseURL, userAgent string, client *http.Client, throttle *Throttle, logger *log.Logger) *MusicBrainzClient {
	if baseURL == "" {
		baseURL = musicBrainzBaseURL
	}
	return &MusicBrainzClient{
		api:       NewAPIService(strings.TrimSuffix(baseURL, "/"), client),
		userAgent: strings.TrimSpace(userAgent),
		throttle:  throttle,
		logger:    shared.WithLogger(logger, "component", "musicbrainz"),
	}
}

// requestJSON performs a throttled GET of path and decodes a JSON object. An empty body is an empty document.
func (c *MusicBrainzClient) requestJSON(ctx context.Context, path string) (payload.Document, error) {
	if c.userAgent == "" {
		return nil, fmt.Errorf("%w: MUSICBRAINZ_USER_AGENT is required", shared.ErrMissingConfig)
	}

	if err := c.throttle.Wait(ctx); err != nil {
		return nil, &LookupError{Message: "MusicBrainz request cancelled", Err: err}
	}

	header := http.Header{
		"User-Agent": []string{c.userAgent},
		"Accept":     []string{"application/json"},
	}

	resp, err := c.api.Send(ctx, http.MethodGet, path, nil, header)
	if err != nil {
		c.logger.Debug("request failed", "path", path, "error", err)
		return nil, &LookupError{Message: "MusicBrainz unavailable", Err: err}
	}
	if !resp.OK() {
		c.logger.Debug("request rejected", "path", path, "status", resp.StatusCode)
		return nil, &LookupError{StatusCode: resp.StatusCode, Message: "MusicBrainz request failed"}
	}

	doc, err := payload.DecodeDocument(resp.Body)
	if errors.Is(err, payload.ErrNotObject) {
		return nil, &LookupError{Message: "MusicBrainz returned invalid payload", Err: err}
	}
	if err != nil {
		return nil, &LookupError{Message: "MusicBrainz returned invalid JSON", Err: err}
	}
	return doc, nil
}

// SearchISRC returns the recordings MusicBrainz associates with isrc.
//
// Items of the recordings array that are not objects are skipped. A payload without the array yields none.
func (c *MusicBrainzClient) SearchISRC(ctx context.Context, isrc string) ([]payload.Document, error) {
	doc, err := c.requestJSON(ctx, "/ws/2/isrc/"+url.PathEscape(isrc)+"?fmt=json")
	if err != nil {
		return nil, err
	}

	recordings, _ := doc.Objects("recordings")
	return recordings, nil
}

// LookupRecording fetches a recording with its tags, genres, artist credits and releases.
//
// A direct lookup is tried first. When it fails or lacks a string id, a search by rid picks the
// best candidate instead. The bool is false when MusicBrainz has no such recording.
func (c *MusicBrainzClient) LookupRecording(ctx context.Context, mbid string) (payload.Document, bool, error) {
	direct := "/ws/2/recording/" + url.PathEscape(mbid) + "?fmt=json&inc=" + recordingIncludes

	doc, directErr := c.requestJSON(ctx, direct)
	if directErr == nil {
		if _, ok := doc.String("id"); ok {
			return doc, true, nil
		}
	}

	query := url.Values{"query": []string{"rid:" + mbid}, "fmt": []string{"json"}, "limit": []string{"1"}}
	fallback, err := c.requestJSON(ctx, "/ws/2/recording?"+query.Encode())
	if err != nil {
		if directErr != nil {
			return nil, false, directErr
		}
		return nil, false, err
	}

	candidates, _ := fallback.Objects("recordings")
	best, ok := PickBestRecording(candidates, mbid)
	if !ok {
		// A 404 from the direct lookup makes an empty search authoritative.
		var le *LookupError
		if errors.As(directErr, &le) && le.StatusCode != 0 && le.StatusCode != http.StatusNotFound {
			return nil, false, directErr
		}
		return nil, false, nil
	}
	return best, true, nil
}

// PickBestRecording selects the candidate whose id equals expected, if any.
// Otherwise it returns the candidate with the largest (score, id) pair.
func PickBestRecording(candidates []payload.Document, expected string) (payload.Document, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	if expected != "" {
		for _, c := range candidates {
			if id, ok := c.String("id"); ok && id == expected {
				return c, true
			}
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		bs, cs := best.Coerce("score", 0), c.Coerce("score", 0)
		if cs > bs || (cs == bs && recordingID(c) > recordingID(best)) {
			best = c
		}
	}
	return best, true
}

// recordingID renders the id field as text for ordering.
func recordingID(doc payload.Document) string {
	switch v := doc["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
