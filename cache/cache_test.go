package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
)

func newTestCache(t *testing.T, opt Options) (Cache, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Time{})
	opt.Clock = clk
	if opt.PositiveTTL == 0 {
		opt.PositiveTTL = time.Hour
	}
	if opt.NegativeTTL == 0 {
		opt.NegativeTTL = time.Minute
	}
	c := New(opt)
	t.Cleanup(func() { _ = c.Close() })
	return c, clk
}

// After Put the entry is readable and fresh immediately.
func TestCache_PutGetFresh(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(t, Options{})

	c.Put("42-7", "loved the ending")
	e, ok := c.Get("42-7")
	require.True(t, ok)
	require.Equal(t, "loved the ending", e.Content)
	require.Equal(t, "42-7", e.Key)
	require.Equal(t, clk.Now(), e.WrittenAt)
	require.True(t, c.IsFresh(e))
	require.True(t, e.HasContent())
}

// A negative entry is present, distinct from a miss.
func TestCache_NegativeEntryIsPresent(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Options{})

	c.Put("u1-5", "")
	e, ok := c.Get("u1-5")
	require.True(t, ok, "negative entry must not read as a miss")
	require.Equal(t, "", e.Content)
	require.False(t, e.HasContent())

	_, ok = c.Get("u2-5")
	require.False(t, ok)
}

func TestHasContent_TrimsWhitespace(t *testing.T) {
	t.Parallel()

	require.False(t, HasContent(""))
	require.False(t, HasContent(" \n\t "))
	require.True(t, HasContent(" x "))
}

// Freshness flips exactly at the window boundary, and the positive window
// outlives the negative one.
func TestCache_FreshnessBoundaries(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(t, Options{PositiveTTL: time.Hour, NegativeTTL: time.Minute})

	c.Put("pos", "note")
	c.Put("neg", "")
	pos, _ := c.Get("pos")
	neg, _ := c.Get("neg")

	clk.Advance(time.Minute - time.Nanosecond)
	require.True(t, c.IsFresh(neg))
	clk.Advance(time.Nanosecond)
	require.False(t, c.IsFresh(neg), "negative entry stale at NegativeTTL")
	require.True(t, c.IsFresh(pos))

	clk.Advance(time.Hour - time.Minute - time.Nanosecond)
	require.True(t, c.IsFresh(pos))
	clk.Advance(time.Nanosecond)
	require.False(t, c.IsFresh(pos), "positive entry stale at PositiveTTL")

	// Stale entries are still served.
	_, ok := c.Get("pos")
	require.True(t, ok)
	_, ok = c.Get("neg")
	require.True(t, ok)
}

func TestCache_WhitespaceContentUsesNegativeWindow(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(t, Options{PositiveTTL: time.Hour, NegativeTTL: time.Minute})
	c.Put("k", "   ")
	e, _ := c.Get("k")
	clk.Advance(time.Minute)
	require.False(t, c.IsFresh(e))
}

func TestCache_OverwriteRefreshesWrittenAt(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(t, Options{})
	c.Put("k", "")
	clk.Advance(2 * time.Minute)
	e, _ := c.Get("k")
	require.False(t, c.IsFresh(e))

	c.Put("k", "now there is a note")
	e, _ = c.Get("k")
	require.True(t, c.IsFresh(e))
	require.Equal(t, clk.Now(), e.WrittenAt)
	require.Equal(t, 1, c.Len())
}

func TestCache_MaxStaleEvicts(t *testing.T) {
	t.Parallel()

	var evicted []EvictReason
	c, clk := newTestCache(t, Options{
		MaxStale: 10 * time.Minute,
		OnEvict:  func(_ Entry, r EvictReason) { evicted = append(evicted, r) },
	})

	c.Put("neg", "")
	clk.Advance(time.Minute + 10*time.Minute - time.Nanosecond)
	_, ok := c.Get("neg")
	require.True(t, ok, "stale but within MaxStale")

	clk.Advance(time.Nanosecond)
	_, ok = c.Get("neg")
	require.False(t, ok)
	require.Equal(t, []EvictReason{EvictTTL}, evicted)
	require.Equal(t, int64(1), c.Stats().Evictions)
}

// Deterministic LRU eviction: single shard, small capacity.
func TestCache_EvictionLRU(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Options{Capacity: 2, Shards: 1})

	c.Put("a", "1")
	c.Put("b", "2")
	_, ok := c.Get("a") // promote a
	require.True(t, ok)
	c.Put("c", "3") // evicts b

	_, ok = c.Get("b")
	require.False(t, ok, "b must be evicted")
	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestCache_DeleteAndSnapshot(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Options{})
	c.Put("a", "1")
	c.Put("b", "")

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "1", snap["a"].Content)

	require.True(t, c.Delete("a"))
	require.False(t, c.Delete("a"))
	require.Equal(t, 1, c.Len())
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Options{})
	c.Put("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	require.Equal(t, int64(2), st.Hits)
	require.Equal(t, int64(1), st.Misses)
	require.Equal(t, 1, st.Entries)
}

func TestCache_ClosedIgnoresWrites(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Options{})
	c.Put("a", "1")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.Put("b", "2")
	_, ok := c.Get("a")
	require.False(t, ok)
	require.ErrorIs(t, c.Flush(t.Context()), ErrClosed)
}

func TestNew_RejectsInvertedWindows(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		New(Options{PositiveTTL: time.Minute, NegativeTTL: time.Hour})
	})
}

type countingMetrics struct {
	hits, misses, evicts, size int
}

func (m *countingMetrics) Hit()              { m.hits++ }
func (m *countingMetrics) Miss()             { m.misses++ }
func (m *countingMetrics) Evict(EvictReason) { m.evicts++ }
func (m *countingMetrics) Size(n int)        { m.size = n }

func TestCache_MetricsHooks(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c, _ := newTestCache(t, Options{Capacity: 1, Shards: 1, Metrics: m})
	c.Put("a", "1")
	c.Get("a")
	c.Get("zz")
	c.Put("b", "2")

	require.Equal(t, 1, m.hits)
	require.Equal(t, 1, m.misses)
	require.Equal(t, 1, m.evicts)
	require.Equal(t, 1, m.size)
}
