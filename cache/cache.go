package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/internal/util"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("cache: closed")

// settings is the read-only configuration shared by all shards.
type settings struct {
	positive time.Duration
	negative time.Duration
	maxStale time.Duration
	clk      clock.Clock
	metrics  Metrics
	onEvict  func(Entry, EvictReason)

	resident atomic.Int64
}

func (s *settings) window(e Entry) time.Duration {
	if e.HasContent() {
		return s.positive
	}
	return s.negative
}

func (s *settings) tooStale(e Entry) bool {
	if s.maxStale <= 0 {
		return false
	}
	return s.clk.Now().Sub(e.WrittenAt) >= s.window(e)+s.maxStale
}

func (s *settings) reportSize() { s.metrics.Size(int(s.resident.Load())) }

// cache is a sharded annotation cache with LRU capacity bounds and
// positive/negative freshness windows.
type cache struct {
	shards []*shard
	set    *settings
	opt    Options
	log    *slog.Logger

	dirty  atomic.Bool
	closed atomic.Bool

	saveMu  sync.Mutex   // serializes SaveAll calls
	writeMu sync.RWMutex // Put and Delete hold it shared; Close flips closed under it

	mu         sync.Mutex // guards flushTimer and closeOnce state
	flushTimer clock.Timer
	closeOnce  sync.Once
	closeErr   error
}

// New constructs a cache with the provided Options and, if Persistence is
// set, loads the last saved snapshot before returning. A failed or malformed
// load leaves the cache empty.
//
// New panics if PositiveTTL is not longer than NegativeTTL.
func New(opt Options) Cache {
	if opt.PositiveTTL <= 0 {
		opt.PositiveTTL = DefaultPositiveTTL
	}
	if opt.NegativeTTL <= 0 {
		opt.NegativeTTL = DefaultNegativeTTL
	}
	if opt.PositiveTTL <= opt.NegativeTTL {
		panic("cache: PositiveTTL must be longer than NegativeTTL")
	}
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}
	if opt.PersistInterval <= 0 {
		opt.PersistInterval = DefaultPersistInterval
	}
	if opt.LoadTimeout <= 0 {
		opt.LoadTimeout = DefaultLoadTimeout
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	opt.Clock = clock.Or(opt.Clock)

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	set := &settings{
		positive: opt.PositiveTTL,
		negative: opt.NegativeTTL,
		maxStale: opt.MaxStale,
		clk:      opt.Clock,
		metrics:  opt.Metrics,
		onEvict:  opt.OnEvict,
	}

	cs := make([]*shard, sh)
	perShardCap := (opt.Capacity + sh - 1) / sh
	for i := range cs {
		cs[i] = newShard(perShardCap, set)
	}

	c := &cache{
		shards: cs,
		set:    set,
		opt:    opt,
		log:    opt.Logger.With("component", "cache"),
	}

	if opt.Persistence != nil {
		c.load()
		c.armFlush()
	}
	return c
}

// ---- Cache implementation ----

// Get returns the entry for key; stale entries are still present.
func (c *cache) Get(key string) (Entry, bool) {
	if c.closed.Load() {
		return Entry{}, false
	}
	return c.getShard(key).Get(key)
}

// Put creates or overwrites key with WrittenAt = now and marks the cache dirty.
func (c *cache) Put(key, content string) {
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()
	if c.closed.Load() {
		return
	}
	c.getShard(key).Set(Entry{Key: key, Content: content, WrittenAt: c.set.clk.Now()})
	c.dirty.Store(true)
}

// Delete removes key if present.
func (c *cache) Delete(key string) bool {
	c.writeMu.RLock()
	defer c.writeMu.RUnlock()
	if c.closed.Load() {
		return false
	}
	ok := c.getShard(key).Remove(key)
	if ok {
		c.dirty.Store(true)
	}
	return ok
}

// IsFresh reports whether e is inside the window for its kind.
func (c *cache) IsFresh(e Entry) bool {
	return c.set.clk.Now().Sub(e.WrittenAt) < c.set.window(e)
}

// Len returns the total number of resident entries.
func (c *cache) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Snapshot copies every resident entry.
func (c *cache) Snapshot() map[string]Entry {
	out := make(map[string]Entry, c.Len())
	for _, s := range c.shards {
		s.appendTo(out)
	}
	return out
}

// Stats sums shard counters.
func (c *cache) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.Entries += s.Len()
	}
	return st
}

// Flush saves the cache if it changed since the last successful save.
func (c *cache) Flush(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.flush(ctx)
}

// Close stops the flusher, saves once more and rejects further writes.
func (c *cache) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.flushTimer != nil {
			c.flushTimer.Stop()
			c.flushTimer = nil
		}
		c.mu.Unlock()

		// No write may land after the final snapshot.
		c.writeMu.Lock()
		c.closed.Store(true)
		c.writeMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.opt.LoadTimeout)
		defer cancel()
		c.closeErr = c.flush(ctx)
	})
	return c.closeErr
}

// ---- persistence ----

func (c *cache) load() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opt.LoadTimeout)
	defer cancel()

	entries, err := c.opt.Persistence.LoadAll(ctx)
	if err != nil {
		c.log.Warn("discarding persisted cache", "error", err)
		return
	}

	loaded, skipped := 0, 0
	for k, e := range entries {
		if k == "" || e.WrittenAt.IsZero() {
			skipped++
			continue
		}
		e.Key = k
		if c.set.tooStale(e) {
			skipped++
			continue
		}
		c.getShard(k).Set(e)
		loaded++
	}
	c.log.Debug("persisted cache loaded", "entries", loaded, "skipped", skipped)
}

func (c *cache) flush(ctx context.Context) error {
	if c.opt.Persistence == nil {
		return nil
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if !c.dirty.Swap(false) {
		return nil
	}
	snap := c.Snapshot()
	start := c.set.clk.Now()
	if err := c.opt.Persistence.SaveAll(ctx, snap); err != nil {
		c.dirty.Store(true)
		c.log.Warn("saving cache failed", "entries", len(snap), "error", err)
		return errors.Wrap(err, "cache: save")
	}
	c.log.Debug("cache saved",
		"entries", len(snap),
		"duration_ms", c.set.clk.Now().Sub(start).Milliseconds())
	return nil
}

// armFlush schedules the next periodic flush.
func (c *cache) armFlush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	c.flushTimer = c.set.clk.AfterFunc(c.opt.PersistInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opt.LoadTimeout)
		_ = c.flush(ctx)
		cancel()
		c.rearm()
	})
}

func (c *cache) rearm() {
	c.mu.Lock()
	stopped := c.flushTimer == nil
	c.mu.Unlock()
	if !stopped {
		c.armFlush()
	}
}

// ---- helpers ----

func (c *cache) getShard(k string) *shard {
	return c.shards[util.ShardIndex(util.KeyHash(k), len(c.shards))]
}
