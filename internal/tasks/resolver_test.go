package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/repositories"
	"github.com/desertthunder/trackfx/internal/services"
	"github.com/desertthunder/trackfx/internal/shared"
	tu "github.com/desertthunder/trackfx/internal/testing"
)

var testPolicy = shared.CacheConfig{
	MappingTTL:   24 * time.Hour,
	FeaturesTTL:  12 * time.Hour,
	NegativeTTL:  time.Hour,
	ErrorBackoff: 15 * time.Minute,
}

type fakeTracks struct {
	tracks map[string]payload.Document
	err    error
	calls  int
	lastID string
}

func (f *fakeTracks) Track(_ context.Context, _ string, trackID string) (payload.Document, error) {
	f.calls++
	f.lastID = trackID
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks[trackID], nil
}

type fakeSessions struct {
	track payload.Document
	err   error
	calls int
}

func (f *fakeSessions) Do(context.Context, string, services.Operation) (payload.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.track, nil
}

type fakeRecordings struct {
	search      map[string][]payload.Document
	recordings  map[string]payload.Document
	err         error
	searchCalls int
	lookupCalls int
}

func (f *fakeRecordings) SearchISRC(_ context.Context, isrc string) ([]payload.Document, error) {
	f.searchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.search[isrc], nil
}

func (f *fakeRecordings) LookupRecording(_ context.Context, mbid string) (payload.Document, bool, error) {
	f.lookupCalls++
	if f.err != nil {
		return nil, false, f.err
	}
	doc, ok := f.recordings[mbid]
	return doc, ok, nil
}

type fixture struct {
	db         *sql.DB
	resolver   *Resolver
	tracks     *fakeTracks
	sessions   *fakeSessions
	recordings *fakeRecordings
	now        time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) row(t *testing.T, table repositories.Table, key string) *models.CacheRow {
	t.Helper()
	row, err := repositories.NewFeatureCache(f.db, testPolicy.ErrorBackoff).Get(context.Background(), table, key)
	if err != nil {
		t.Fatalf("failed to read row: %v", err)
	}
	return row
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := tu.MustOpenDatabase(t)

	f := &fixture{
		db:         db,
		tracks:     &fakeTracks{tracks: map[string]payload.Document{}},
		sessions:   &fakeSessions{},
		recordings: &fakeRecordings{search: map[string][]payload.Document{}, recordings: map[string]payload.Document{}},
		now:        time.Unix(1_700_000_000, 0),
	}
	f.resolver = NewResolver(
		repositories.NewFeatureCache(db, testPolicy.ErrorBackoff),
		f.tracks, f.sessions, f.recordings, testPolicy, nil,
	)
	f.resolver.now = func() time.Time { return f.now }
	return f
}

func TestISRCForTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("Caches Normalized Result", func(t *testing.T) {
		f := newFixture(t)
		f.tracks.tracks["abc"] = mustDoc(t, `{"external_ids":{"isrc":"usabc1234567"}}`)

		isrc, ok, err := f.resolver.ISRCForTrack(ctx, "token", "  abc ")
		if err != nil || !ok || isrc != "USABC1234567" {
			t.Fatalf("ISRCForTrack() = %q, %v, %v", isrc, ok, err)
		}
		if f.tracks.lastID != "abc" {
			t.Errorf("expected trimmed id to be fetched, got %q", f.tracks.lastID)
		}

		isrc, ok, err = f.resolver.ISRCForTrack(ctx, "token", "abc")
		if err != nil || !ok || isrc != "USABC1234567" {
			t.Fatalf("cached ISRCForTrack() = %q, %v, %v", isrc, ok, err)
		}
		if f.tracks.calls != 1 {
			t.Errorf("expected 1 external call, got %d", f.tracks.calls)
		}

		row := f.row(t, repositories.SpotifyToISRC, "abc")
		if row.ExpiresAt != f.now.Unix()+int64(testPolicy.MappingTTL/time.Second) {
			t.Errorf("expected mapping ttl expiry, got %d", row.ExpiresAt)
		}
	})

	t.Run("Negative Result Is Cached", func(t *testing.T) {
		f := newFixture(t)
		f.tracks.tracks["abc"] = mustDoc(t, `{"id":"abc"}`)

		for range 2 {
			if _, ok, err := f.resolver.ISRCForTrack(ctx, "token", "abc"); err != nil || ok {
				t.Fatalf("expected absent, got %v, %v", ok, err)
			}
		}
		if f.tracks.calls != 1 {
			t.Errorf("expected 1 external call, got %d", f.tracks.calls)
		}

		row := f.row(t, repositories.SpotifyToISRC, "abc")
		if row.Values[0] != nil {
			t.Errorf("expected NULL isrc, got %q", *row.Values[0])
		}
		if row.ExpiresAt != f.now.Unix()+int64(testPolicy.NegativeTTL/time.Second) {
			t.Errorf("expected negative ttl expiry, got %d", row.ExpiresAt)
		}

		f.advance(testPolicy.NegativeTTL + time.Second)
		f.resolver.ISRCForTrack(ctx, "token", "abc")
		if f.tracks.calls != 2 {
			t.Errorf("expected refetch after expiry, got %d calls", f.tracks.calls)
		}
	})

	t.Run("Empty Id", func(t *testing.T) {
		f := newFixture(t)

		_, _, err := f.resolver.ISRCForTrack(ctx, "token", "   ")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if f.tracks.calls != 0 {
			t.Errorf("expected no external calls, got %d", f.tracks.calls)
		}
	})

	t.Run("Stale Value Served On Failure", func(t *testing.T) {
		f := newFixture(t)
		f.tracks.tracks["abc"] = mustDoc(t, `{"external_ids":{"isrc":"USABC1234567"}}`)
		if _, _, err := f.resolver.ISRCForTrack(ctx, "token", "abc"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		before := f.row(t, repositories.SpotifyToISRC, "abc")

		f.advance(testPolicy.MappingTTL + time.Hour)
		f.tracks.err = errors.New("connection reset")

		isrc, ok, err := f.resolver.ISRCForTrack(ctx, "token", "abc")
		if err != nil || !ok || isrc != "USABC1234567" {
			t.Fatalf("expected stale value, got %q, %v, %v", isrc, ok, err)
		}

		after := f.row(t, repositories.SpotifyToISRC, "abc")
		if *after.Values[0] != "USABC1234567" || after.ExpiresAt != before.ExpiresAt || after.UpdatedAt != before.UpdatedAt {
			t.Errorf("expected value and expiry unchanged, got %+v", after)
		}
		if after.BackoffUntil <= f.now.Unix() {
			t.Errorf("expected backoff in the future, got %d", after.BackoffUntil)
		}

		f.resolver.ISRCForTrack(ctx, "token", "abc")
		if f.tracks.calls != 2 {
			t.Errorf("expected no call during backoff, got %d calls", f.tracks.calls)
		}
	})

	t.Run("Failure Without Row", func(t *testing.T) {
		f := newFixture(t)
		f.tracks.err = errors.New("timeout")

		_, ok, err := f.resolver.ISRCForTrack(ctx, "token", "abc")
		if err != nil || ok {
			t.Fatalf("expected absent, got %v, %v", ok, err)
		}
		if row := f.row(t, repositories.SpotifyToISRC, "abc"); row != nil {
			t.Errorf("expected no row, got %+v", row)
		}
	})

	t.Run("Auth Failure Takes Failure Branch", func(t *testing.T) {
		f := newFixture(t)
		f.tracks.err = services.NotAuthorized(errors.New("expired"))

		if _, ok, err := f.resolver.ISRCForTrack(ctx, "token", "abc"); err != nil || ok {
			t.Errorf("expected absent, got %v, %v", ok, err)
		}
	})
}

func TestISRCForSessionTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolves Through Session", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.track = mustDoc(t, `{"external_ids":{"isrc":"GBAYE0000001"}}`)

		isrc, ok, err := f.resolver.ISRCForSessionTrack(ctx, "session-1", "abc")
		if err != nil || !ok || isrc != "GBAYE0000001" {
			t.Fatalf("ISRCForSessionTrack() = %q, %v, %v", isrc, ok, err)
		}
		if f.sessions.calls != 1 || f.tracks.calls != 0 {
			t.Errorf("expected session call only, got %d/%d", f.sessions.calls, f.tracks.calls)
		}
	})

	t.Run("Store Failure Propagates", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.err = fmt.Errorf("%w: disk full", shared.ErrStore)

		if _, _, err := f.resolver.ISRCForSessionTrack(ctx, "session-1", "abc"); !errors.Is(err, shared.ErrStore) {
			t.Errorf("expected ErrStore, got %v", err)
		}
	})
}

func TestMBIDForISRC(t *testing.T) {
	ctx := context.Background()

	t.Run("Normalized Keys Share One Lookup", func(t *testing.T) {
		f := newFixture(t)
		f.recordings.search["USABC1234567"] = []payload.Document{
			mustDoc(t, `{"id":"a","score":90}`),
			mustDoc(t, `{"id":"c","score":100}`),
			mustDoc(t, `{"id":"b","score":100}`),
		}

		for _, isrc := range []string{"usabc1234567", " USABC1234567"} {
			mbid, ok, err := f.resolver.MBIDForISRC(ctx, isrc)
			if err != nil || !ok || mbid != "c" {
				t.Fatalf("MBIDForISRC(%q) = %q, %v, %v", isrc, mbid, ok, err)
			}
		}
		if f.recordings.searchCalls != 1 {
			t.Errorf("expected 1 search, got %d", f.recordings.searchCalls)
		}
	})

	t.Run("No Candidates", func(t *testing.T) {
		f := newFixture(t)

		if _, ok, err := f.resolver.MBIDForISRC(ctx, "USABC1234567"); err != nil || ok {
			t.Errorf("expected absent, got %v, %v", ok, err)
		}
		if row := f.row(t, repositories.ISRCToMBID, "USABC1234567"); row == nil || row.Values[0] != nil {
			t.Errorf("expected negative row, got %+v", row)
		}
	})

	t.Run("Missing Config Propagates", func(t *testing.T) {
		f := newFixture(t)
		f.recordings.err = fmt.Errorf("%w: MUSICBRAINZ_USER_AGENT is not set", shared.ErrMissingConfig)

		_, _, err := f.resolver.MBIDForISRC(ctx, "USABC1234567")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
		if row := f.row(t, repositories.ISRCToMBID, "USABC1234567"); row != nil {
			t.Errorf("expected no row, got %+v", row)
		}
	})

	t.Run("Empty ISRC", func(t *testing.T) {
		f := newFixture(t)
		if _, _, err := f.resolver.MBIDForISRC(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if f.recordings.searchCalls != 0 {
			t.Errorf("expected no searches, got %d", f.recordings.searchCalls)
		}
	})
}

func TestFeaturesForMBID(t *testing.T) {
	ctx := context.Background()

	t.Run("Extracts And Caches", func(t *testing.T) {
		f := newFixture(t)
		f.recordings.recordings["mbid-1"] = mustDoc(t, `{
			"id": "mbid-1", "title": "Song",
			"tags": [{"name": "indie", "count": 3}],
			"genres": [{"name": "rock", "count": 1}]
		}`)

		for range 2 {
			features, ok, err := f.resolver.FeaturesForMBID(ctx, " mbid-1 ")
			if err != nil || !ok {
				t.Fatalf("FeaturesForMBID() = %v, %v", ok, err)
			}
			if len(features.Tags) != 2 || features.Tags[1].Source != models.TagSourceGenre {
				t.Errorf("unexpected tags %+v", features.Tags)
			}
			if features.Metadata.Title == nil || *features.Metadata.Title != "Song" {
				t.Errorf("unexpected metadata %+v", features.Metadata)
			}
		}
		if f.recordings.lookupCalls != 1 {
			t.Errorf("expected 1 lookup, got %d", f.recordings.lookupCalls)
		}

		row := f.row(t, repositories.TrackFeatures, "mbid-1")
		if row.ExpiresAt != f.now.Unix()+int64(testPolicy.FeaturesTTL/time.Second) {
			t.Errorf("expected features ttl expiry, got %d", row.ExpiresAt)
		}
	})

	t.Run("Unknown Recording Stores Marker", func(t *testing.T) {
		f := newFixture(t)

		if _, ok, err := f.resolver.FeaturesForMBID(ctx, "gone"); err != nil || ok {
			t.Fatalf("expected absent, got %v, %v", ok, err)
		}

		row := f.row(t, repositories.TrackFeatures, "gone")
		tags, _ := row.Value(0)
		metadata, _ := row.Value(1)
		if tags != "[]" || metadata != `{"__missing__":true}` {
			t.Errorf("unexpected marker row %q %q", tags, metadata)
		}

		if _, ok, _ := f.resolver.FeaturesForMBID(ctx, "gone"); ok {
			t.Error("expected cached marker to read as absent")
		}
		if f.recordings.lookupCalls != 1 {
			t.Errorf("expected 1 lookup, got %d", f.recordings.lookupCalls)
		}
	})
}

func TestResolveTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("Full Chain", func(t *testing.T) {
		f := newFixture(t)
		f.tracks.tracks["abc"] = mustDoc(t, `{"external_ids":{"isrc":"USABC1234567"}}`)
		f.recordings.search["USABC1234567"] = []payload.Document{mustDoc(t, `{"id":"mbid-1","score":100}`)}
		f.recordings.recordings["mbid-1"] = mustDoc(t, `{"id":"mbid-1","tags":[{"name":"indie","count":1}]}`)

		res, err := f.resolver.ResolveTrack(ctx, "token", "abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Complete() || *res.ISRC != "USABC1234567" || *res.MBID != "mbid-1" {
			t.Errorf("unexpected resolution %+v", res)
		}
	})

	t.Run("Stops At Absent Hop", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.track = mustDoc(t, `{"external_ids":{"isrc":"USABC1234567"}}`)

		res, err := f.resolver.ResolveSessionTrack(ctx, "session-1", "abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.SpotifyTrackID != "abc" || res.ISRC == nil || res.MBID != nil || res.Features != nil {
			t.Errorf("unexpected resolution %+v", res)
		}
		if f.recordings.lookupCalls != 0 {
			t.Errorf("expected no recording lookup, got %d", f.recordings.lookupCalls)
		}
	})
}
