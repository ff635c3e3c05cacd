package tasks

import (
	"github.com/desertthunder/trackfx/internal/repositories"
)

// Resolution stage enumeration
type Stage int

const (
	StageTrackISRC Stage = iota
	StageISRCMBID
	StageFeatures
)

func (s Stage) String() string {
	switch s {
	case StageTrackISRC:
		return "track_isrc"
	case StageISRCMBID:
		return "isrc_mbid"
	case StageFeatures:
		return "features"
	default:
		return ""
	}
}

// Table returns the cache table backing the stage.
func (s Stage) Table() repositories.Table {
	switch s {
	case StageISRCMBID:
		return repositories.ISRCToMBID
	case StageFeatures:
		return repositories.TrackFeatures
	default:
		return repositories.SpotifyToISRC
	}
}
