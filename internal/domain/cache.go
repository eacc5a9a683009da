package domain

import (
	"context"
	"time"
)

// CacheEntry is a cached query result.
type CacheEntry struct {
	Value      any
	UpdatedAt  time.Time
	LastAccess time.Time
	// Stale entries are still served while a refetch is outstanding.
	Stale bool
}

// Cache defines the key-addressed store behind the query client.
// Keys are canonical strings; prefixes are matched on whole key segments.
type Cache interface {
	// Get returns the entry for key, stale or not
	Get(ctx context.Context, key string) (CacheEntry, bool)

	// Set stores a value under key; stale marks it for refetch on next read
	Set(ctx context.Context, key string, value any, stale bool) error

	// Delete removes a single key
	Delete(ctx context.Context, key string) error

	// MarkStale flags every entry under prefix and returns how many matched
	MarkStale(ctx context.Context, prefix string) (int, error)

	// DeletePrefix removes every entry under prefix and returns how many matched
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// CleanExpired drops entries that were not read within the GC window
	CleanExpired(ctx context.Context) error
}

// KeySeparator joins the canonical segments of a cache key. Segments are JSON
// encoded, so the separator never appears inside one.
const KeySeparator = "\x1f"
