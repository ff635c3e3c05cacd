// package tasks implements the cached Spotify -> ISRC -> MBID -> features resolution chain.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/repositories"
	"github.com/desertthunder/trackfx/internal/services"
	"github.com/desertthunder/trackfx/internal/shared"
)

// CacheStore persists stage results. Implemented by [repositories.FeatureCache].
type CacheStore interface {
	Get(ctx context.Context, table repositories.Table, key string) (*models.CacheRow, error)
	Upsert(ctx context.Context, table repositories.Table, key string, now time.Time, ttl time.Duration, values ...*string) error
	SetBackoff(ctx context.Context, table repositories.Table, key string, now time.Time) error
}

// TrackSource fetches Spotify tracks with a bare access token.
type TrackSource interface {
	Track(ctx context.Context, accessToken, trackID string) (payload.Document, error)
}

// SessionRunner performs Spotify operations for a logged-in session.
type SessionRunner interface {
	Do(ctx context.Context, sessionID string, op services.Operation) (payload.Document, error)
}

// RecordingSource queries MusicBrainz recordings.
type RecordingSource interface {
	SearchISRC(ctx context.Context, isrc string) ([]payload.Document, error)
	LookupRecording(ctx context.Context, mbid string) (payload.Document, bool, error)
}

// Resolver runs the cached resolution stages.
type Resolver struct {
	cache      CacheStore
	tracks     TrackSource
	sessions   SessionRunner
	recordings RecordingSource
	policy     shared.CacheConfig
	now        func() time.Time
	logger     *log.Logger
}

// NewResolver creates a Resolver using the TTLs of policy.
func NewResolver(cache CacheStore, tracks TrackSource, sessions SessionRunner, recordings RecordingSource, policy shared.CacheConfig, logger *log.Logger) *Resolver {
	return &Resolver{
		cache:      cache,
		tracks:     tracks,
		sessions:   sessions,
		recordings: recordings,
		policy:     policy,
		now:        time.Now,
		logger:     shared.WithLogger(logger, "component", "resolver"),
	}
}

// stage describes one cached hop: how to fetch a value and how to store and read it back.
type stage[T any] struct {
	kind   Stage
	ttl    time.Duration
	fetch  func(ctx context.Context) (T, bool, error)
	encode func(v T, found bool) ([]*string, error)
	decode func(row *models.CacheRow) (T, bool)
}

// run applies the cache policy shared by all stages to one key.
func run[T any](ctx context.Context, r *Resolver, s stage[T], key string) (T, bool, error) {
	var zero T
	table := s.kind.Table()
	logger := r.logger.With("stage", s.kind, "key", key)

	row, err := r.cache.Get(ctx, table, key)
	if err != nil {
		logger.Error("cache read failed", "error", err)
		return zero, false, err
	}
	if row.Usable(r.now()) {
		logger.Debug("cache hit")
		v, ok := s.decode(row)
		return v, ok, nil
	}
	logger.Debug("cache miss")

	v, found, err := s.fetch(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrMissingConfig) || errors.Is(err, shared.ErrStore) {
			return zero, false, err
		}
		return recoverStage(ctx, r, s, key, err)
	}

	values, err := s.encode(v, found)
	if err != nil {
		return zero, false, err
	}

	ttl := s.ttl
	if !found {
		ttl = r.policy.NegativeTTL
	}
	if err := r.cache.Upsert(ctx, table, key, r.now(), ttl, values...); err != nil {
		logger.Error("cache write failed", "error", err)
		return zero, false, err
	}
	return v, found, nil
}

// recoverStage serves the stored row after a failed lookup and opens its backoff window.
//
// The row is read again after the lookup.
func recoverStage[T any](ctx context.Context, r *Resolver, s stage[T], key string, cause error) (T, bool, error) {
	var zero T
	table := s.kind.Table()
	logger := r.logger.With("stage", s.kind, "key", key)

	row, err := r.cache.Get(ctx, table, key)
	if err != nil {
		logger.Error("cache read failed", "error", err)
		return zero, false, err
	}
	if row == nil {
		logger.Warn("lookup failed, no cached value", "error", cause)
		return zero, false, nil
	}

	if err := r.cache.SetBackoff(ctx, table, key, r.now()); err != nil {
		logger.Error("cache backoff failed", "error", err)
		return zero, false, err
	}
	logger.Warn("lookup failed, serving cached value", "error", cause)

	v, ok := s.decode(row)
	return v, ok, nil
}

// ISRCForTrack resolves a Spotify track to its ISRC using a bare access token.
func (r *Resolver) ISRCForTrack(ctx context.Context, accessToken, trackID string) (string, bool, error) {
	return r.isrc(ctx, trackID, func(ctx context.Context, id string) (payload.Document, error) {
		return r.tracks.Track(ctx, accessToken, id)
	})
}

// ISRCForSessionTrack resolves a Spotify track to its ISRC on behalf of a session.
func (r *Resolver) ISRCForSessionTrack(ctx context.Context, sessionID, trackID string) (string, bool, error) {
	return r.isrc(ctx, trackID, func(ctx context.Context, id string) (payload.Document, error) {
		return r.sessions.Do(ctx, sessionID, services.TrackRequest(id))
	})
}

func (r *Resolver) isrc(ctx context.Context, trackID string, get func(context.Context, string) (payload.Document, error)) (string, bool, error) {
	key := NormalizeTrackID(trackID)
	if key == "" {
		return "", false, fmt.Errorf("%w: spotify track id is required", shared.ErrInvalidInput)
	}

	return run(ctx, r, stage[string]{
		kind: StageTrackISRC,
		ttl:  r.policy.MappingTTL,
		fetch: func(ctx context.Context) (string, bool, error) {
			track, err := get(ctx, key)
			if err != nil {
				return "", false, err
			}
			isrc, ok := ExtractISRC(track)
			return isrc, ok, nil
		},
		encode: encodeText,
		decode: decodeText,
	}, key)
}

// MBIDForISRC resolves an ISRC to the best matching MusicBrainz recording id.
func (r *Resolver) MBIDForISRC(ctx context.Context, isrc string) (string, bool, error) {
	key := NormalizeISRC(isrc)
	if key == "" {
		return "", false, fmt.Errorf("%w: isrc is required", shared.ErrInvalidInput)
	}

	return run(ctx, r, stage[string]{
		kind: StageISRCMBID,
		ttl:  r.policy.MappingTTL,
		fetch: func(ctx context.Context) (string, bool, error) {
			candidates, err := r.recordings.SearchISRC(ctx, key)
			if err != nil {
				return "", false, err
			}
			mbid, ok := ExtractMBID(candidates)
			return mbid, ok, nil
		},
		encode: encodeText,
		decode: decodeText,
	}, key)
}

// FeaturesForMBID resolves a recording id to its tags and metadata.
func (r *Resolver) FeaturesForMBID(ctx context.Context, mbid string) (*models.TrackFeatures, bool, error) {
	key := NormalizeMBID(mbid)
	if key == "" {
		return nil, false, fmt.Errorf("%w: mbid is required", shared.ErrInvalidInput)
	}

	return run(ctx, r, stage[*models.TrackFeatures]{
		kind: StageFeatures,
		ttl:  r.policy.FeaturesTTL,
		fetch: func(ctx context.Context) (*models.TrackFeatures, bool, error) {
			recording, ok, err := r.recordings.LookupRecording(ctx, key)
			if err != nil || !ok {
				return nil, false, err
			}
			return ExtractFeatures(recording), true, nil
		},
		encode: encodeFeatures,
		decode: DecodeFeatures,
	}, key)
}

// ResolveTrack runs the full chain for a track using a bare access token.
func (r *Resolver) ResolveTrack(ctx context.Context, accessToken, trackID string) (*models.TrackResolution, error) {
	return r.resolve(ctx, trackID, func(ctx context.Context) (string, bool, error) {
		return r.ISRCForTrack(ctx, accessToken, trackID)
	})
}

// ResolveSessionTrack runs the full chain for a track on behalf of a session.
func (r *Resolver) ResolveSessionTrack(ctx context.Context, sessionID, trackID string) (*models.TrackResolution, error) {
	return r.resolve(ctx, trackID, func(ctx context.Context) (string, bool, error) {
		return r.ISRCForSessionTrack(ctx, sessionID, trackID)
	})
}

// resolve stops at the first absent hop.
func (r *Resolver) resolve(ctx context.Context, trackID string, isrcFor func(context.Context) (string, bool, error)) (*models.TrackResolution, error) {
	res := &models.TrackResolution{SpotifyTrackID: NormalizeTrackID(trackID)}

	isrc, ok, err := isrcFor(ctx)
	if err != nil || !ok {
		return res, err
	}
	res.ISRC = &isrc

	mbid, ok, err := r.MBIDForISRC(ctx, isrc)
	if err != nil || !ok {
		return res, err
	}
	res.MBID = &mbid

	features, ok, err := r.FeaturesForMBID(ctx, mbid)
	if err != nil || !ok {
		return res, err
	}
	res.Features = features
	return res, nil
}

func encodeText(v string, found bool) ([]*string, error) {
	if !found {
		return []*string{nil}, nil
	}
	return []*string{models.SQLText(v)}, nil
}

func decodeText(row *models.CacheRow) (string, bool) {
	return row.Value(0)
}

var missingFeatures = []*string{models.SQLText("[]"), models.SQLText(`{"` + models.MissingMarker + `":true}`)}

func encodeFeatures(f *models.TrackFeatures, found bool) ([]*string, error) {
	if !found || f == nil {
		return missingFeatures, nil
	}

	tags := f.Tags
	if tags == nil {
		tags = []models.Tag{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	metadataJSON, err := json.Marshal(f.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return []*string{models.SQLText(string(tagsJSON)), models.SQLText(string(metadataJSON))}, nil
}

// DecodeFeatures reads a track_features row back into features.
//
// The negative-result marker and undecodable rows both yield false.
func DecodeFeatures(row *models.CacheRow) (*models.TrackFeatures, bool) {
	tagsJSON, ok := row.Value(0)
	if !ok {
		return nil, false
	}
	metadataJSON, ok := row.Value(1)
	if !ok {
		return nil, false
	}

	rawTags, err := payload.Decode([]byte(tagsJSON))
	if err != nil {
		return nil, false
	}
	rawMetadata, err := payload.Decode([]byte(metadataJSON))
	if err != nil {
		return nil, false
	}

	metadata, _ := payload.AsDocument(rawMetadata)
	if missing, _ := metadata[models.MissingMarker].(bool); missing {
		return nil, false
	}

	features := &models.TrackFeatures{Tags: []models.Tag{}}
	if _, isList := rawTags.([]any); isList {
		if err := json.Unmarshal([]byte(tagsJSON), &features.Tags); err != nil {
			return nil, false
		}
	}
	if metadata != nil {
		if err := json.Unmarshal([]byte(metadataJSON), &features.Metadata); err != nil {
			return nil, false
		}
	}
	return features, true
}
