package prom

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

func TestCacheAdapter(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewCache(reg, "notes", prometheus.Labels{"app": "test"})

	c := cache.New(cache.Options{Capacity: 1, Shards: 1, Metrics: m})
	t.Cleanup(func() { _ = c.Close() })
	c.Put("a", "1")
	c.Get("a")
	c.Get("b")
	c.Put("b", "2") // evicts a

	require.Equal(t, 1.0, testutil.ToFloat64(m.hits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.misses))
	require.Equal(t, 1.0, testutil.ToFloat64(m.evicts.WithLabelValues("capacity")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.entries))
}

func TestSchedulerAdapter(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewScheduler(reg, "notes", nil)

	clk := clock.NewFake(time.Time{})
	c := cache.New(cache.Options{Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	done := make(chan struct{}, 2)
	s := scheduler.New(c, scheduler.FetcherFunc(func(context.Context, string, string) (string, error) {
		return "", nil
	}), scheduler.Options{Metrics: m, Clock: clk})
	t.Cleanup(func() { _ = s.Close() })

	sj := scheduler.Subject{ID: "1", ContextID: "2"}
	s.Request(sj.Key(), sj, func(scheduler.Result) { done <- struct{}{} })
	s.Request(sj.Key(), sj, func(scheduler.Result) { done <- struct{}{} })
	<-done
	<-done

	require.Equal(t, 1.0, testutil.ToFloat64(m.enqueued))
	require.Equal(t, 1.0, testutil.ToFloat64(m.deduped))
	require.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("empty")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP notes_scheduler_queue_depth Requests waiting for admission
# TYPE notes_scheduler_queue_depth gauge
notes_scheduler_queue_depth 0
`), "notes_scheduler_queue_depth")
	require.NoError(t, err)
}

func TestDefaultRegistererPanicsOnDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCache(reg, "dup", nil)
	require.Panics(t, func() { NewCache(reg, "dup", nil) })
}
