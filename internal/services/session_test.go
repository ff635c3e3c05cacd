package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/shared"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.TokenSet
	cleared  []string
}

func newMemoryStore(id string, tokens models.TokenSet) *memoryStore {
	s := &memoryStore{sessions: map[string]models.TokenSet{}}
	if tokens != nil {
		s.sessions[id] = tokens
	}
	return s
}

func (s *memoryStore) Get(_ context.Context, id string) (models.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], nil
}

func (s *memoryStore) Store(_ context.Context, id string, tokens models.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = tokens
	return nil
}

func (s *memoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.cleared = append(s.cleared, id)
	return nil
}

type stubRefresher struct {
	calls  int
	tokens models.TokenSet
	err    error
	seen   string
}

func (r *stubRefresher) Refresh(_ context.Context, refreshToken string) (models.TokenSet, error) {
	r.calls++
	r.seen = refreshToken
	return r.tokens, r.err
}

// profileServer answers /v1/me with 200 for the accepted token and 401 otherwise.
func profileServer(t *testing.T, accepted string) (*SpotifyClient, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	client := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+accepted {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			return
		}
		io.WriteString(w, `{"id":"user-1"}`)
	})
	return client, &calls
}

func TestSessionClient(t *testing.T) {
	ctx := context.Background()

	t.Run("No Stored Tokens", func(t *testing.T) {
		api, calls := profileServer(t, "good")
		store := newMemoryStore("s1", nil)
		refresher := &stubRefresher{}

		_, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", CurrentUserRequest())

		if !errors.Is(err, shared.ErrNotAuthorized) {
			t.Errorf("expected not authorized, got %v", err)
		}
		if calls.Load() != 0 || refresher.calls != 0 {
			t.Errorf("expected no network calls, got %d api and %d refresh", calls.Load(), refresher.calls)
		}
	})

	t.Run("Missing Access Token Clears Session", func(t *testing.T) {
		api, calls := profileServer(t, "good")
		store := newMemoryStore("s1", models.TokenSet{"refresh_token": "r1"})

		_, err := NewSessionClient(api, store, &stubRefresher{}, nil).Do(ctx, "s1", CurrentUserRequest())

		var se *SpotifyError
		if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized || se.Message != "Not authorized" {
			t.Errorf("expected not authorized, got %v", err)
		}
		if len(store.cleared) != 1 || calls.Load() != 0 {
			t.Errorf("expected cleared session without network, got cleared %v and %d calls", store.cleared, calls.Load())
		}
	})

	t.Run("Success Without Refresh", func(t *testing.T) {
		api, calls := profileServer(t, "good")
		store := newMemoryStore("s1", models.TokenSet{"access_token": "good"})
		refresher := &stubRefresher{}

		doc, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", CurrentUserRequest())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id, _ := doc.String("id"); id != "user-1" {
			t.Errorf("expected profile, got %v", doc)
		}
		if calls.Load() != 1 || refresher.calls != 0 {
			t.Errorf("expected one attempt and no refresh, got %d and %d", calls.Load(), refresher.calls)
		}
	})

	t.Run("Auth Retry With Merged Tokens", func(t *testing.T) {
		api, calls := profileServer(t, "fresh")
		store := newMemoryStore("s1", models.TokenSet{"access_token": "stale", "refresh_token": "r1", "scope": "user-read-private"})
		refresher := &stubRefresher{tokens: models.TokenSet{"access_token": "fresh", "expires_in": 3600}}

		doc, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", CurrentUserRequest())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id, _ := doc.String("id"); id != "user-1" {
			t.Errorf("expected second attempt's result, got %v", doc)
		}
		if calls.Load() != 2 {
			t.Errorf("expected exactly two attempts, got %d", calls.Load())
		}
		if refresher.calls != 1 || refresher.seen != "r1" {
			t.Errorf("expected one refresh with r1, got %d with %s", refresher.calls, refresher.seen)
		}

		stored, _ := store.Get(ctx, "s1")
		if v, _ := stored.AccessToken(); v != "fresh" {
			t.Errorf("expected stored fresh access token, got %s", v)
		}
		if v, _ := stored.RefreshToken(); v != "r1" {
			t.Errorf("expected retained refresh token, got %s", v)
		}
		if stored["scope"] != "user-read-private" || stored["expires_in"] != 3600 {
			t.Errorf("expected merged fields, got %v", stored)
		}
	})

	t.Run("Terminal Auth Failure Without Refresh Token", func(t *testing.T) {
		api, calls := profileServer(t, "good")
		store := newMemoryStore("s1", models.TokenSet{"access_token": "stale"})
		refresher := &stubRefresher{}

		_, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", CurrentUserRequest())

		if !errors.Is(err, shared.ErrNotAuthorized) || !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected not authorized without refresh token, got %v", err)
		}
		if calls.Load() != 1 || refresher.calls != 0 {
			t.Errorf("expected no retry, got %d attempts and %d refreshes", calls.Load(), refresher.calls)
		}
		if tokens, _ := store.Get(ctx, "s1"); tokens != nil {
			t.Errorf("expected tokens cleared, got %v", tokens)
		}
	})

	t.Run("Second Auth Failure Clears Session", func(t *testing.T) {
		api, calls := profileServer(t, "never")
		store := newMemoryStore("s1", models.TokenSet{"access_token": "stale", "refresh_token": "r1"})
		refresher := &stubRefresher{tokens: models.TokenSet{"access_token": "still-bad"}}

		_, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", CurrentUserRequest())

		var se *SpotifyError
		if !errors.As(err, &se) || se.Message != "Not authorized" || se.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected not authorized, got %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected exactly two attempts, got %d", calls.Load())
		}
		if tokens, _ := store.Get(ctx, "s1"); tokens != nil {
			t.Errorf("expected tokens cleared, got %v", tokens)
		}
	})

	t.Run("Non-Auth Error Is Returned As Is", func(t *testing.T) {
		api := newSpotifyServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"status":404,"message":"Non existing id"}}`)
		})
		store := newMemoryStore("s1", models.TokenSet{"access_token": "good", "refresh_token": "r1"})
		refresher := &stubRefresher{}

		_, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", TrackRequest("nope"))

		var se *SpotifyError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound || se.Message != "Non existing id" {
			t.Errorf("expected 404 error, got %v", err)
		}
		if refresher.calls != 0 || len(store.cleared) != 0 {
			t.Error("expected no refresh and no clearing")
		}
	})

	t.Run("Refresh Failure Propagates", func(t *testing.T) {
		api, calls := profileServer(t, "good")
		store := newMemoryStore("s1", models.TokenSet{"access_token": "stale", "refresh_token": "r1"})
		refusal := &SpotifyError{StatusCode: http.StatusUnauthorized, Message: "Refresh token revoked", AuthError: true}
		refresher := &stubRefresher{err: refusal}

		_, err := NewSessionClient(api, store, refresher, nil).Do(ctx, "s1", CurrentUserRequest())

		if !errors.Is(err, refusal) {
			t.Errorf("expected refresh error, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected no retry, got %d attempts", calls.Load())
		}
		if tokens, _ := store.Get(ctx, "s1"); tokens == nil {
			t.Error("expected tokens to be kept after refresh failure")
		}
	})

	t.Run("Logout", func(t *testing.T) {
		api, _ := profileServer(t, "good")
		store := newMemoryStore("s1", models.TokenSet{"access_token": "good"})

		if err := NewSessionClient(api, store, nil, nil).Logout(ctx, "s1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tokens, _ := store.Get(ctx, "s1"); tokens != nil {
			t.Error("expected tokens cleared")
		}
	})
}
