package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictCapacity: removed to keep the cache within Capacity (LRU order).
	EvictCapacity EvictReason = iota
	// EvictTTL: older than its freshness window plus MaxStale (lazy, on access).
	EvictTTL
)

// String returns a stable label for the reason.
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	default:
		return "capacity"
	}
}

// Metrics exposes cache-level observability hooks.
// NoopMetrics is used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Persistence stores whole-cache snapshots. Implementations must tolerate
// concurrent LoadAll/SaveAll calls from different goroutines.
type Persistence interface {
	// LoadAll returns the last saved snapshot. A nil map with a nil error
	// means nothing was saved yet.
	LoadAll(ctx context.Context) (map[string]Entry, error)
	// SaveAll replaces the stored snapshot.
	SaveAll(ctx context.Context, entries map[string]Entry) error
}

// Options configures the cache. Zero values are safe; defaults are applied
// in New:
//   - PositiveTTL <= 0     => DefaultPositiveTTL
//   - NegativeTTL <= 0     => DefaultNegativeTTL
//   - Capacity <= 0        => DefaultCapacity
//   - Shards <= 0          => auto (power of two)
//   - PersistInterval <= 0 => DefaultPersistInterval
//   - nil Metrics          => NoopMetrics
//   - nil Logger           => discard
//   - nil Clock            => clock.Real
type Options struct {
	// PositiveTTL is the freshness window of entries with content.
	PositiveTTL time.Duration
	// NegativeTTL is the freshness window of empty entries; must be shorter
	// than PositiveTTL since "no note yet" changes sooner than a note.
	NegativeTTL time.Duration

	// MaxStale bounds how long past its freshness window an entry is still
	// served. 0 keeps stale entries until evicted by capacity.
	MaxStale time.Duration

	// Capacity is the entry count limit, split across shards.
	Capacity int
	Shards   int

	// Persistence, if set, is read once in New and written by a background
	// flusher every PersistInterval when the cache is dirty, and on Close.
	Persistence     Persistence
	PersistInterval time.Duration
	// LoadTimeout bounds the initial LoadAll (default 5s).
	LoadTimeout time.Duration

	// OnEvict is called on eviction under the shard lock; keep it lightweight.
	OnEvict func(e Entry, reason EvictReason)
	Metrics Metrics
	Logger  *slog.Logger

	// Clock allows overriding the time source (tests).
	Clock clock.Clock
}

// Defaults applied by New.
const (
	DefaultPositiveTTL     = 24 * time.Hour
	DefaultNegativeTTL     = 30 * time.Minute
	DefaultCapacity        = 10_000
	DefaultPersistInterval = 30 * time.Second
	DefaultLoadTimeout     = 5 * time.Second
)
