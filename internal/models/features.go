package models

// Tag sources
const (
	TagSourceTag   = "tag"
	TagSourceGenre = "genre"
)

// MissingMarker is the metadata key that flags a cached negative features result.
const MissingMarker = "__missing__"

// Tag is a community tag or genre attached to a recording.
type Tag struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Source string `json:"source"`
}

// ReleaseSummary is a release containing a recording. Fields are nil when MusicBrainz did not return a string.
type ReleaseSummary struct {
	ID    *string `json:"id"`
	Title *string `json:"title"`
	Date  *string `json:"date"`
}

// RecordingMetadata holds the descriptive fields of a MusicBrainz recording.
type RecordingMetadata struct {
	MBID           *string          `json:"mbid"`
	Title          *string          `json:"title"`
	LengthMS       *int64           `json:"length_ms"`
	Disambiguation *string          `json:"disambiguation"`
	Artists        []string         `json:"artists"`
	Releases       []ReleaseSummary `json:"releases"`
}

// TrackFeatures is the enriched feature set of one recording.
type TrackFeatures struct {
	Tags     []Tag             `json:"tags"`
	Metadata RecordingMetadata `json:"metadata"`
}

// TagsBySource returns the tags whose source matches.
func (f *TrackFeatures) TagsBySource(source string) []Tag {
	tags := []Tag{}
	for _, t := range f.Tags {
		if t.Source == source {
			tags = append(tags, t)
		}
	}
	return tags
}

// TrackResolution records every hop of resolving a Spotify track.
//
// A chain stops at the first absent hop, so later fields stay empty.
type TrackResolution struct {
	SpotifyTrackID string         `json:"spotify_track_id"`
	ISRC           *string        `json:"isrc"`
	MBID           *string        `json:"mbid"`
	Features       *TrackFeatures `json:"features"`
}

// Complete reports whether every hop resolved.
func (r *TrackResolution) Complete() bool {
	return r.ISRC != nil && r.MBID != nil && r.Features != nil
}
