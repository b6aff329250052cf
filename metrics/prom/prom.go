// Package prom exports cache and scheduler hooks as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// CacheAdapter implements cache.Metrics.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type CacheAdapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	entries prometheus.Gauge
}

// NewCache registers the cache metrics.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns:           Prometheus namespace; the subsystem is "cache"
//   - constLabels:  static labels applied to all metrics (may be nil)
func NewCache(reg prometheus.Registerer, ns string, constLabels prometheus.Labels) *CacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const sub = "cache"
	a := &CacheAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Lookups that found an entry, fresh or stale",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Lookups that found nothing",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Entries removed by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entries)
	return a
}

func (a *CacheAdapter) Hit()  { a.hits.Inc() }
func (a *CacheAdapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *CacheAdapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the resident entries gauge.
func (a *CacheAdapter) Size(entries int) { a.entries.Set(float64(entries)) }

// SchedulerAdapter implements scheduler.Metrics.
type SchedulerAdapter struct {
	enqueued  prometheus.Counter
	deduped   prometheus.Counter
	deferred  prometheus.Counter
	fetches   *prometheus.CounterVec
	latency   prometheus.Histogram
	queueSize prometheus.Gauge
}

// NewScheduler registers the scheduler metrics under subsystem "scheduler".
func NewScheduler(reg prometheus.Registerer, ns string, constLabels prometheus.Labels) *SchedulerAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const sub = "scheduler"
	a := &SchedulerAdapter{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "requests_total",
			Help:        "Requests that created a new queue entry",
			ConstLabels: constLabels,
		}),
		deduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "deduplicated_total",
			Help:        "Requests attached to an outstanding entry",
			ConstLabels: constLabels,
		}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "deferred_total",
			Help:        "Admissions delayed by the request budget or the upstream rate limit",
			ConstLabels: constLabels,
		}),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "fetches_total",
				Help:        "Settled fetches by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "fetch_duration_seconds",
			Help:        "Fetch latency",
			Buckets:     prometheus.ExponentialBuckets(0.05, 2, 8),
			ConstLabels: constLabels,
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "queue_depth",
			Help:        "Requests waiting for admission",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.enqueued, a.deduped, a.deferred, a.fetches, a.latency, a.queueSize)
	return a
}

func (a *SchedulerAdapter) Enqueued()     { a.enqueued.Inc() }
func (a *SchedulerAdapter) Deduplicated() { a.deduped.Inc() }
func (a *SchedulerAdapter) Deferred()     { a.deferred.Inc() }

// Fetched counts the outcome and observes the latency.
func (a *SchedulerAdapter) Fetched(o scheduler.Outcome, d time.Duration) {
	a.fetches.WithLabelValues(o.String()).Inc()
	a.latency.Observe(d.Seconds())
}

func (a *SchedulerAdapter) QueueDepth(n int) { a.queueSize.Set(float64(n)) }

var (
	_ cache.Metrics     = (*CacheAdapter)(nil)
	_ scheduler.Metrics = (*SchedulerAdapter)(nil)
)
