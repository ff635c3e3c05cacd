package tasks

import (
	"strings"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/payload"
	"github.com/desertthunder/trackfx/internal/services"
	"golang.org/x/text/cases"
)

// NormalizeTrackID trims a Spotify track id.
func NormalizeTrackID(id string) string {
	return strings.TrimSpace(id)
}

// NormalizeISRC trims and uppercases an ISRC.
func NormalizeISRC(isrc string) string {
	return strings.ToUpper(strings.TrimSpace(isrc))
}

// NormalizeMBID trims a MusicBrainz recording id.
func NormalizeMBID(mbid string) string {
	return strings.TrimSpace(mbid)
}

// ExtractISRC reads external_ids.isrc from a Spotify track payload.
func ExtractISRC(track payload.Document) (string, bool) {
	ids, ok := track.Object("external_ids")
	if !ok {
		return "", false
	}
	raw, ok := ids.String("isrc")
	if !ok {
		return "", false
	}
	isrc := NormalizeISRC(raw)
	return isrc, isrc != ""
}

// ExtractMBID picks the best recording among ISRC search candidates and returns its id.
func ExtractMBID(candidates []payload.Document) (string, bool) {
	best, ok := services.PickBestRecording(candidates, "")
	if !ok {
		return "", false
	}
	id, ok := best.TrimmedString("id")
	if !ok {
		return "", false
	}
	return NormalizeMBID(id), true
}

// ExtractFeatures maps a MusicBrainz recording to its tags and metadata.
//
// Tags list the recording's tags followed by its genres. Artist names come from each credit's
// own name and its nested artist name, deduplicated case-insensitively in first-seen order.
func ExtractFeatures(recording payload.Document) *models.TrackFeatures {
	tags := extractTags(recording, "tags", models.TagSourceTag)
	tags = append(tags, extractTags(recording, "genres", models.TagSourceGenre)...)

	metadata := models.RecordingMetadata{
		MBID:           recording.StringPtr("id"),
		Title:          recording.StringPtr("title"),
		Disambiguation: recording.StringPtr("disambiguation"),
		Artists:        extractArtists(recording),
		Releases:       extractReleases(recording),
	}
	if length, ok := recording.Int("length"); ok {
		metadata.LengthMS = &length
	}

	return &models.TrackFeatures{Tags: tags, Metadata: metadata}
}

func extractTags(recording payload.Document, key, source string) []models.Tag {
	items, _ := recording.Objects(key)

	tags := make([]models.Tag, 0, len(items))
	for _, item := range items {
		name, ok := item.TrimmedString("name")
		if !ok {
			continue
		}
		tags = append(tags, models.Tag{Name: name, Count: item.Coerce("count", 0), Source: source})
	}
	return tags
}

func extractArtists(recording payload.Document) []string {
	credits, _ := recording.Objects("artist-credit")

	var names []string
	for _, credit := range credits {
		if name, ok := credit.TrimmedString("name"); ok {
			names = append(names, name)
		}
		if artist, ok := credit.Object("artist"); ok {
			if name, ok := artist.TrimmedString("name"); ok {
				names = append(names, name)
			}
		}
	}

	fold := cases.Fold()
	seen := make(map[string]bool, len(names))
	artists := make([]string, 0, len(names))
	for _, name := range names {
		key := fold.String(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		artists = append(artists, name)
	}
	return artists
}

func extractReleases(recording payload.Document) []models.ReleaseSummary {
	items, _ := recording.Objects("releases")

	releases := make([]models.ReleaseSummary, 0, len(items))
	for _, item := range items {
		releases = append(releases, models.ReleaseSummary{
			ID:    item.StringPtr("id"),
			Title: item.StringPtr("title"),
			Date:  item.StringPtr("date"),
		})
	}
	return releases
}
