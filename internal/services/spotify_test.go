package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/shared"
	tu "github.com/desertthunder/trackfx/internal/testing"
)

func newSpotifyServer(t *testing.T, handler http.HandlerFunc) *SpotifyClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSpotifyClient(server.URL, server.Client(), nil)
}

func TestExtractErrorMessage(t *testing.T) {
	tt := []struct {
		name string
		body string
		want string
	}{
		{name: "nested error message", body: `{"error":{"status":401,"message":"The access token expired"},"detail":"x"}`, want: "The access token expired"},
		{name: "error description", body: `{"error":"invalid_grant","error_description":"Refresh token revoked"}`, want: "Refresh token revoked"},
		{name: "error string", body: `{"error":"invalid_client"}`, want: "invalid_client"},
		{name: "detail", body: `{"error":{"message":""},"detail":"Not found"}`, want: "Not found"},
		{name: "message", body: `{"message":"Slow down"}`, want: "Slow down"},
		{name: "fallback", body: `{"error":42}`, want: "fallback"},
		{name: "empty", body: ``, want: "fallback"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			doc, _ := payload.DecodeDocument([]byte(tc.body))
			if got := ExtractErrorMessage(doc, "fallback"); got != tc.want {
				t.Errorf("ExtractErrorMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Track", func(t *testing.T) {
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/tracks/abc123" {
				t.Errorf("expected track path, got %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer token-1" {
				t.Errorf("expected bearer token, got %s", r.Header.Get("Authorization"))
			}
			io.WriteString(w, `{"id":"abc123","external_ids":{"isrc":"usabc1234567"}}`)
		})

		doc, err := client.Track(ctx, "token-1", "abc123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id, _ := doc.String("id"); id != "abc123" {
			t.Errorf("expected id abc123, got %s", id)
		}
	})

	t.Run("Authorization Failure", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				io.WriteString(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			})

			_, err := client.Track(ctx, "expired", "abc123")

			var se *SpotifyError
			if !errors.As(err, &se) {
				t.Fatalf("expected SpotifyError, got %v", err)
			}
			if !se.AuthError || se.StatusCode != status {
				t.Errorf("expected auth error with status %d, got %+v", status, se)
			}
			if se.Message != "The access token expired" {
				t.Errorf("expected envelope message, got %s", se.Message)
			}
			if !errors.Is(err, shared.ErrNotAuthorized) {
				t.Error("expected error to match ErrNotAuthorized")
			}
		}
	})

	t.Run("Authorization Failure Without Envelope", func(t *testing.T) {
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, "nope")
		})

		_, err := client.Track(ctx, "expired", "abc123")
		var se *SpotifyError
		if !errors.As(err, &se) || se.Message != "Unauthorized Spotify token" {
			t.Errorf("expected fallback auth message, got %v", err)
		}
	})

	t.Run("Other Failure", func(t *testing.T) {
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"detail":"Rate limited"}`)
		})

		_, err := client.Track(ctx, "token", "abc123")

		var se *SpotifyError
		if !errors.As(err, &se) {
			t.Fatalf("expected SpotifyError, got %v", err)
		}
		if se.AuthError || se.StatusCode != http.StatusTooManyRequests || se.Message != "Rate limited" {
			t.Errorf("unexpected error %+v", se)
		}
		if !errors.Is(err, shared.ErrAPIRequest) || errors.Is(err, shared.ErrNotAuthorized) {
			t.Error("expected error to match ErrAPIRequest only")
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		httpClient := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("dial tcp: timeout"))}
		client := NewSpotifyClient("http://spotify.invalid", httpClient, nil)

		_, err := client.Track(ctx, "token", "abc123")

		var se *SpotifyError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway || se.Message != "Spotify API unavailable" {
			t.Errorf("expected 502 unavailable, got %v", err)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"id":`)
		})

		_, err := client.Track(ctx, "token", "abc123")

		var se *SpotifyError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway || se.Message != "Spotify API returned invalid JSON" {
			t.Errorf("expected 502 invalid JSON, got %v", err)
		}
	})

	t.Run("Non-Object Body", func(t *testing.T) {
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `["a"]`)
		})

		_, err := client.Track(ctx, "token", "abc123")
		var se *SpotifyError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
			t.Errorf("expected 502, got %v", err)
		}
	})

	t.Run("Empty Body", func(t *testing.T) {
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		doc, err := client.Do(ctx, "token", SaveToLibraryRequest([]string{"spotify:track:abc"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(doc) != 0 {
			t.Errorf("expected empty document, got %v", doc)
		}
	})
}

func TestRequests(t *testing.T) {
	t.Run("Search Query", func(t *testing.T) {
		r := SearchTracksRequest("daft punk", 5, 10)
		if r.URL() != "/v1/search?limit=5&offset=10&q=daft+punk&type=track" {
			t.Errorf("unexpected url %s", r.URL())
		}
	})

	t.Run("Track Path Escaping", func(t *testing.T) {
		if r := TrackRequest("a/b"); r.URL() != "/v1/tracks/a%2Fb" {
			t.Errorf("unexpected url %s", r.URL())
		}
	})

	t.Run("Library Requests Use Track IDs", func(t *testing.T) {
		r := RemoveFromLibraryRequest([]string{"spotify:track:abc", "def", "spotify:episode:x", " "})
		if r.Method != http.MethodDelete || r.Path != "/v1/me/tracks" {
			t.Errorf("unexpected request %+v", r)
		}

		ids := r.Body.(map[string]any)["ids"].([]string)
		if len(ids) != 2 || ids[0] != "abc" || ids[1] != "def" {
			t.Errorf("unexpected ids %v", ids)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		var calls atomic.Int32
		client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			switch r.URL.Path {
			case "/v1/me":
				io.WriteString(w, `{"id":"user-1"}`)
			case "/v1/users/user-1/playlists":
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["name"] != "Mix" || body["public"] != true {
					t.Errorf("unexpected body %v", body)
				}
				if _, ok := body["description"]; ok {
					t.Error("expected nil description to be omitted")
				}
				w.WriteHeader(http.StatusCreated)
				io.WriteString(w, `{"id":"pl-1"}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		doc, err := CreatePlaylist{Name: "Mix", Public: true}.Execute(context.Background(), client, "token")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id, _ := doc.String("id"); id != "pl-1" {
			t.Errorf("expected created playlist, got %v", doc)
		}
		if calls.Load() != 2 {
			t.Errorf("expected two calls, got %d", calls.Load())
		}
	})
}
