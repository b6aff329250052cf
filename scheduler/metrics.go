package scheduler

import "time"

// Outcome classifies a settled fetch.
type Outcome int

const (
	OutcomeContent Outcome = iota
	OutcomeEmpty
	OutcomeError
	OutcomeRateLimited
)

// String returns a stable label value.
func (o Outcome) String() string {
	switch o {
	case OutcomeContent:
		return "content"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}

// Metrics exposes scheduler observability hooks.
type Metrics interface {
	// Enqueued is called when a new pending request joins the queue.
	Enqueued()
	// Deduplicated is called when a caller attaches to an existing request.
	Deduplicated()
	// Deferred is called when an admission waits for the window to roll.
	Deferred()
	// Fetched is called once per settled fetch.
	Fetched(o Outcome, d time.Duration)
	// QueueDepth reports the number of queued, not yet admitted requests.
	QueueDepth(n int)
}

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) Enqueued()                      {}
func (NoopMetrics) Deduplicated()                  {}
func (NoopMetrics) Deferred()                      {}
func (NoopMetrics) Fetched(Outcome, time.Duration) {}
func (NoopMetrics) QueueDepth(int)                 {}

var _ Metrics = NoopMetrics{}
