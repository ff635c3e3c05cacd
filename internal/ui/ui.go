package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/trackfx/internal/models"
)

const labelWidth = 10

// Success renders a check-marked status line.
func Success(format string, args ...any) string {
	return styles.ok.Render("✓ " + fmt.Sprintf(format, args...))
}

// Failure renders a crossed status line.
func Failure(format string, args ...any) string {
	return styles.err.Render("✗ " + fmt.Sprintf(format, args...))
}

// Warning renders a warning status line.
func Warning(format string, args ...any) string {
	return styles.warn.Render("! " + fmt.Sprintf(format, args...))
}

// Hint renders secondary help text.
func Hint(format string, args ...any) string {
	return styles.help.Render(fmt.Sprintf(format, args...))
}

// Field renders an aligned "label value" row. An empty value prints as a dimmed dash.
func Field(label, value string) string {
	if value == "" {
		value = styles.help.Render("-")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, styles.label.Render(label), value)
}

// Features renders a recording card for the terminal.
func Features(f *models.TrackFeatures) string {
	m := f.Metadata
	rows := []string{
		styles.title.Render(value(m.Title)),
		Field("MBID", value(m.MBID)),
		Field("Artists", strings.Join(m.Artists, ", ")),
		Field("Tags", tagList(f.TagsBySource(models.TagSourceTag))),
		Field("Genres", tagList(f.TagsBySource(models.TagSourceGenre))),
		Field("Releases", fmt.Sprint(len(m.Releases))),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Resolution renders the hops of a track resolution, followed by the features card when present.
func Resolution(res *models.TrackResolution) string {
	rows := []string{
		Field("Track", res.SpotifyTrackID),
		Field("ISRC", value(res.ISRC)),
		Field("MBID", value(res.MBID)),
	}
	if res.Features == nil {
		rows = append(rows, "", Warning("no features resolved"))
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}
	rows = append(rows, "", Features(res.Features))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func tagList(tags []models.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = fmt.Sprintf("%s (%d)", t.Name, t.Count)
	}
	return strings.Join(names, ", ")
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
