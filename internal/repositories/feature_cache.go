package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trackfx/internal/models"
	"github.com/desertthunder/trackfx/internal/shared"
)

// FeatureCache stores resolver results in the per-stage cache tables.
//
// Rows are never deleted. Upserts overwrite values and timestamps and clear any backoff.
type FeatureCache struct {
	db      *sql.DB
	backoff time.Duration
}

// NewFeatureCache creates a FeatureCache that extends failed rows by the given backoff window.
func NewFeatureCache(db *sql.DB, backoff time.Duration) *FeatureCache {
	return &FeatureCache{db: db, backoff: backoff}
}

// Get returns the row stored under key, or nil when there is none.
func (c *FeatureCache) Get(ctx context.Context, table Table, key string) (*models.CacheRow, error) {
	cols := append([]string{table.KeyColumn}, table.ValueColumns...)
	query := fmt.Sprintf(
		"SELECT %s, updated_at, expires_at, backoff_until FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), table.Name, table.KeyColumn,
	)

	var row *models.CacheRow
	err := withTx(ctx, c.db, func(tx *sql.Tx) error {
		values := make([]sql.NullString, len(table.ValueColumns))
		r := &models.CacheRow{}

		dest := []any{&r.Key}
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &r.UpdatedAt, &r.ExpiresAt, &r.BackoffUntil)

		if err := tx.QueryRowContext(ctx, query, key).Scan(dest...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("%w: failed to read %s row: %v", shared.ErrStore, table.Name, err)
		}

		r.Values = make([]*string, len(values))
		for i, v := range values {
			if v.Valid {
				r.Values[i] = models.SQLText(v.String)
			}
		}
		row = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Upsert stores values under key with expires_at = now + ttl and resets backoff_until.
//
// A nil value is stored as NULL and records a negative result.
func (c *FeatureCache) Upsert(ctx context.Context, table Table, key string, now time.Time, ttl time.Duration, values ...*string) error {
	if len(values) != len(table.ValueColumns) {
		return fmt.Errorf("%w: %s expects %d values, got %d",
			shared.ErrInvalidArgument, table.Name, len(table.ValueColumns), len(values))
	}

	cols := append([]string{table.KeyColumn}, table.ValueColumns...)
	cols = append(cols, "updated_at", "expires_at", "backoff_until")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)-1), ", ")
	updates := make([]string, 0, len(table.ValueColumns)+3)
	targets := append(append([]string{}, table.ValueColumns...), "updated_at", "expires_at")
	for _, col := range targets {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	updates = append(updates, "backoff_until = 0")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s, 0) ON CONFLICT(%s) DO UPDATE SET %s",
		table.Name, strings.Join(cols, ", "), placeholders, table.KeyColumn, strings.Join(updates, ", "),
	)

	ts := now.Unix()
	args := []any{key}
	for _, v := range values {
		if v == nil {
			args = append(args, nil)
		} else {
			args = append(args, *v)
		}
	}
	args = append(args, ts, ts+int64(ttl/time.Second))

	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: failed to upsert %s row: %v", shared.ErrStore, table.Name, err)
		}
		return nil
	})
}

// SetBackoff sets backoff_until = now + the configured window. Value and expiry are left untouched.
func (c *FeatureCache) SetBackoff(ctx context.Context, table Table, key string, now time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET backoff_until = ? WHERE %s = ?", table.Name, table.KeyColumn)
	until := now.Unix() + int64(c.backoff/time.Second)

	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, until, key); err != nil {
			return fmt.Errorf("%w: failed to set %s backoff: %v", shared.ErrStore, table.Name, err)
		}
		return nil
	})
}
