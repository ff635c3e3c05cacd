// package repositories provides persistence layer implementations for cache and session state.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/trackfx/internal/shared"
)

// Table describes one cache table: its name, key column and value columns in storage order.
type Table struct {
	Name         string
	KeyColumn    string
	ValueColumns []string
}

var (
	// SpotifyToISRC maps a Spotify track id to its ISRC.
	SpotifyToISRC = Table{Name: "spotify_to_isrc", KeyColumn: "spotify_track_id", ValueColumns: []string{"isrc"}}
	// ISRCToMBID maps an uppercase ISRC to the best MusicBrainz recording id.
	ISRCToMBID = Table{Name: "isrc_to_mbid", KeyColumn: "isrc", ValueColumns: []string{"mbid"}}
	// TrackFeatures maps a recording id to its tags and metadata documents.
	TrackFeatures = Table{Name: "track_features", KeyColumn: "mbid", ValueColumns: []string{"tags_json", "metadata_json"}}
)

// Tables lists every cache table.
func Tables() []Table {
	return []Table{SpotifyToISRC, ISRCToMBID, TrackFeatures}
}

// TableByName returns the cache table with the given name.
func TableByName(name string) (Table, error) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("%w: unknown cache table %q", shared.ErrInvalidArgument, name)
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrStore, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", shared.ErrStore, err)
	}
	return nil
}
