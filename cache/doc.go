// Package cache provides the annotation cache behind the hover surface: a
// sharded, in-memory key→Entry store whose entries carry the time they were
// written and are judged fresh against one of two windows.
//
// Design
//
//   - Positive vs negative: an Entry whose Content is non-empty after
//     trimming is positive and stays fresh for PositiveTTL. An empty Content
//     is a negative entry: a definitive "no note" answer, still present
//     (Get returns ok == true) but fresh only for the much shorter
//     NegativeTTL, because a user is far more likely to add a note soon than
//     to change one.
//
//   - Stale while revalidate: Get never hides an entry because it is stale.
//     Callers render whatever is present and use IsFresh to decide whether a
//     refresh is due. MaxStale optionally caps how long stale data is served.
//
//   - Concurrency: the cache is split into shards, each protected by a mutex
//     with a map and an intrusive MRU↔LRU list. Capacity is split evenly and
//     enforced in LRU order.
//
//   - Persistence: Options.Persistence is read once by New (a load failure
//     is logged and the cache starts empty) and written by a background
//     flusher every PersistInterval when Put or Delete changed something.
//     Writes never wait for persistence. Close performs a final save.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals; plug
//     metrics/prom to export them.
//
// Basic usage
//
//	c := cache.New(cache.Options{PositiveTTL: 24 * time.Hour, NegativeTTL: 30 * time.Minute})
//	defer c.Close()
//
//	c.Put("5120-21", "rewatching with friends")
//	c.Put("77-21", "") // confirmed: no note
//
//	if e, ok := c.Get("77-21"); ok && !e.HasContent() {
//	    // present but negative; refresh once !c.IsFresh(e)
//	}
package cache
