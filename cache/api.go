package cache

import (
	"context"
	"strings"
	"time"
)

// Entry is a cached annotation lookup result.
//
// Content may be empty: an empty Content is a definitive "no annotation"
// answer (a negative entry) and is distinct from a cache miss.
type Entry struct {
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	WrittenAt time.Time `json:"writtenAt"`
}

// HasContent reports whether the entry is positive.
func (e Entry) HasContent() bool { return HasContent(e.Content) }

// HasContent reports whether content is non-empty after trimming whitespace.
func HasContent(content string) bool { return strings.TrimSpace(content) != "" }

// Cache is a key→Entry store with separate freshness windows for positive
// and negative entries. All methods are safe for concurrent use.
//
// Reads never perform I/O. Writes mark the cache dirty; a background flusher
// hands snapshots to the configured Persistence.
type Cache interface {
	// Get returns the entry for key and whether it is present.
	// Stale entries are returned as present; use IsFresh to decide on a refresh.
	Get(key string) (Entry, bool)

	// Put creates or overwrites the entry for key with WrittenAt = now.
	Put(key, content string)

	// Delete removes key if present and returns true on success.
	Delete(key string) bool

	// IsFresh reports whether e is still inside its freshness window:
	// PositiveTTL for positive entries, NegativeTTL for negative ones.
	IsFresh(e Entry) bool

	// Len returns the number of resident entries across all shards.
	Len() int

	// Snapshot returns a copy of every resident entry.
	Snapshot() map[string]Entry

	// Stats returns cumulative hit/miss/eviction counters.
	Stats() Stats

	// Flush saves a snapshot through Persistence if the cache changed since
	// the last successful save. It is a no-op without Persistence.
	Flush(ctx context.Context) error

	// Close stops the background flusher, performs a final Flush and marks
	// the cache closed. It is idempotent.
	Close() error
}

// Stats are cumulative counters since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}
