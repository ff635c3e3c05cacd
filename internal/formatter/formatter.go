// package formatter renders track features and resolutions as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/shared"
)

// Output formats
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Formats lists the accepted format names.
var Formats = []string{FormatJSON, FormatText, FormatMarkdown, FormatCSV}

// Render formats features in the named format.
func Render(f *models.TrackFeatures, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		return ToJSON(f)
	case FormatText:
		return FeaturesToText(f), nil
	case FormatMarkdown, "md":
		return FeaturesToMarkdown(f), nil
	case FormatCSV:
		return FeaturesToCSV(f)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)",
			shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// ToJSON renders v as indented JSON.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// FeaturesToCSV writes one row per tag with columns: MBID, Title, Tag, Count, Source
func FeaturesToCSV(f *models.TrackFeatures) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"MBID", "Title", "Tag", "Count", "Source"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	mbid, title := deref(f.Metadata.MBID), deref(f.Metadata.Title)
	for _, tag := range f.Tags {
		record := []string{mbid, title, tag.Name, strconv.Itoa(tag.Count), tag.Source}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// FeaturesToMarkdown renders the recording as a Markdown document with tag and genre sections.
func FeaturesToMarkdown(f *models.TrackFeatures) []byte {
	var buf bytes.Buffer
	m := f.Metadata

	fmt.Fprintf(&buf, "# %s\n\n", orDefault(m.Title, "Untitled recording"))
	if len(m.Artists) > 0 {
		fmt.Fprintf(&buf, "**Artists**: %s\n", strings.Join(m.Artists, ", "))
	}
	if m.MBID != nil {
		fmt.Fprintf(&buf, "**MBID**: %s\n", *m.MBID)
	}
	if m.LengthMS != nil {
		fmt.Fprintf(&buf, "**Length**: %s\n", FormatLength(*m.LengthMS))
	}
	if m.Disambiguation != nil && *m.Disambiguation != "" {
		fmt.Fprintf(&buf, "**Disambiguation**: %s\n", *m.Disambiguation)
	}

	writeSection := func(heading string, tags []models.Tag) {
		if len(tags) == 0 {
			return
		}
		fmt.Fprintf(&buf, "\n## %s\n\n", heading)
		for _, t := range tags {
			fmt.Fprintf(&buf, "- %s (%d)\n", t.Name, t.Count)
		}
	}
	writeSection("Tags", f.TagsBySource(models.TagSourceTag))
	writeSection("Genres", f.TagsBySource(models.TagSourceGenre))

	if len(m.Releases) > 0 {
		buf.WriteString("\n## Releases\n\n")
		for i, r := range m.Releases {
			line := fmt.Sprintf("%d. %s", i+1, orDefault(r.Title, "Untitled release"))
			if r.Date != nil && *r.Date != "" {
				line += fmt.Sprintf(" (%s)", *r.Date)
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.Bytes()
}

// FeaturesToText renders the recording as plain text
func FeaturesToText(f *models.TrackFeatures) []byte {
	var buf bytes.Buffer
	m := f.Metadata

	fmt.Fprintf(&buf, "Recording: %s\n", orDefault(m.Title, "-"))
	fmt.Fprintf(&buf, "MBID: %s\n", orDefault(m.MBID, "-"))
	if len(m.Artists) > 0 {
		fmt.Fprintf(&buf, "Artists: %s\n", strings.Join(m.Artists, ", "))
	}
	if m.LengthMS != nil {
		fmt.Fprintf(&buf, "Length: %s\n", FormatLength(*m.LengthMS))
	}
	fmt.Fprintf(&buf, "Releases: %d\n", len(m.Releases))

	names := func(tags []models.Tag) string {
		out := make([]string, len(tags))
		for i, t := range tags {
			out[i] = t.Name
		}
		return strings.Join(out, ", ")
	}
	if tags := f.TagsBySource(models.TagSourceTag); len(tags) > 0 {
		fmt.Fprintf(&buf, "Tags: %s\n", names(tags))
	}
	if genres := f.TagsBySource(models.TagSourceGenre); len(genres) > 0 {
		fmt.Fprintf(&buf, "Genres: %s\n", names(genres))
	}

	return buf.Bytes()
}

// ResolutionToText lists each hop of a resolution. Unresolved hops print as "-".
func ResolutionToText(res *models.TrackResolution) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Spotify track: %s\n", res.SpotifyTrackID)
	fmt.Fprintf(&buf, "ISRC: %s\n", orDefault(res.ISRC, "-"))
	fmt.Fprintf(&buf, "MBID: %s\n", orDefault(res.MBID, "-"))
	if res.Features != nil {
		buf.WriteString("\n")
		buf.Write(FeaturesToText(res.Features))
	}

	return buf.Bytes()
}

// FormatLength renders milliseconds as m:ss.
func FormatLength(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
