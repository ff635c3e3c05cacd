// package models defines the data model for the track feature resolver
package models

import "time"

// CacheRow is one row of a cache table.
//
// Values holds the stored columns in table order. A nil entry is a SQL NULL, which marks a cached negative result.
// Timestamps are unix seconds.
type CacheRow struct {
	Key          string
	Values       []*string
	UpdatedAt    int64
	ExpiresAt    int64
	BackoffUntil int64
}

// Usable reports whether the row may be served without an external lookup.
//
// A row is usable while it is fresh or while a previous failure's backoff window is still open.
func (r *CacheRow) Usable(now time.Time) bool {
	if r == nil {
		return false
	}
	ts := now.Unix()
	return ts <= r.ExpiresAt || ts <= r.BackoffUntil
}

// Value returns the column at index i and whether it holds a non-null value.
func (r *CacheRow) Value(i int) (string, bool) {
	if r == nil || i < 0 || i >= len(r.Values) || r.Values[i] == nil {
		return "", false
	}
	return *r.Values[i], true
}

// SQLText returns a pointer to s, used to pass a non-null column value.
func SQLText(s string) *string {
	return &s
}
