package scheduler

import (
	"log/slog"
	"time"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
)

// Options configures the scheduler. Zero values are replaced in New:
//   - RequestBudget <= 0     => DefaultRequestBudget
//   - WindowDuration <= 0    => DefaultWindowDuration
//   - InterRequestDelay == 0 => DefaultInterRequestDelay (negative disables spacing)
//   - FetchTimeout <= 0      => DefaultFetchTimeout
//   - nil Metrics            => NoopMetrics
//   - nil Logger             => discard
//   - nil Clock              => clock.Real
type Options struct {
	// RequestBudget is the maximum number of fetches started in any
	// WindowDuration-long interval.
	RequestBudget  int
	WindowDuration time.Duration

	// InterRequestDelay is the pause between a fetch settling and the next
	// admission check while the queue is non-empty. It keeps bursts well
	// below the hard budget.
	InterRequestDelay time.Duration

	// FetchTimeout bounds a single Fetch call.
	FetchTimeout time.Duration

	Metrics Metrics
	Logger  *slog.Logger
	Clock   clock.Clock
}

// Defaults applied by New. AniList allows 90 requests per minute and drops
// to 30 when degraded; stay under the degraded figure.
const (
	DefaultRequestBudget     = 25
	DefaultWindowDuration    = time.Minute
	DefaultInterRequestDelay = 700 * time.Millisecond
	DefaultFetchTimeout      = 10 * time.Second
)

func (o *Options) applyDefaults() {
	if o.RequestBudget <= 0 {
		o.RequestBudget = DefaultRequestBudget
	}
	if o.WindowDuration <= 0 {
		o.WindowDuration = DefaultWindowDuration
	}
	switch {
	case o.InterRequestDelay == 0:
		o.InterRequestDelay = DefaultInterRequestDelay
	case o.InterRequestDelay < 0:
		o.InterRequestDelay = 0
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	o.Clock = clock.Or(o.Clock)
}
