package main

import (
	"context"
	"time"

	"github.com/desertthunder/trackfx/internal/repositories"
	"github.com/desertthunder/trackfx/internal/ui"
	"github.com/urfave/cli/v3"
)

// cachedRow is the printed form of a cache row. Null values print as null.
type cachedRow struct {
	Table        string             `json:"table"`
	Key          string             `json:"key"`
	Values       map[string]*string `json:"values"`
	UpdatedAt    time.Time          `json:"updated_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
	BackoffUntil *time.Time         `json:"backoff_until"`
	Usable       bool               `json:"usable"`
}

// CacheShow prints one row of a cache table.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	table, err := repositories.TableByName(cmd.String("table"))
	if err != nil {
		return err
	}

	s, err := r.open()
	if err != nil {
		return err
	}
	defer s.Close()

	key := cmd.String("key")
	row, err := s.cache.Get(ctx, table, key)
	if err != nil {
		return err
	}
	if row == nil {
		return r.writePlain("%s\n", ui.Warning("no %s row for %s", table.Name, key))
	}

	out := cachedRow{
		Table:     table.Name,
		Key:       row.Key,
		Values:    make(map[string]*string, len(table.ValueColumns)),
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
		ExpiresAt: time.Unix(row.ExpiresAt, 0).UTC(),
		Usable:    row.Usable(time.Now()),
	}
	for i, col := range table.ValueColumns {
		out.Values[col] = row.Values[i]
	}
	if row.BackoffUntil > 0 {
		until := time.Unix(row.BackoffUntil, 0).UTC()
		out.BackoffUntil = &until
	}

	return r.writeJSON(out, true)
}
