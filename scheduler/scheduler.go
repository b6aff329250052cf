package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
)

// ErrRateLimited marks a fetch failure caused by the remote rate limiter.
// Fetchers wrap it so the scheduler can recognize it with errors.Is.
var ErrRateLimited = errors.New("scheduler: upstream rate limit")

// Subject identifies whose annotation is requested (ID) and for what
// (ContextID).
type Subject struct {
	ID        string
	ContextID string
}

// Key returns the cache key "{ID}-{ContextID}".
func (s Subject) Key() string { return s.ID + "-" + s.ContextID }

// Fetcher resolves the annotation of a subject. It returns "" for a
// confirmed absence and an error for transport or protocol failures.
type Fetcher interface {
	Fetch(ctx context.Context, subjectID, contextID string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, subjectID, contextID string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, subjectID, contextID string) (string, error) {
	return f(ctx, subjectID, contextID)
}

// Result is delivered to every subscriber of a settled request.
// On failure Content is "", HasContent is false and Err is set.
type Result struct {
	Key        string
	Content    string
	HasContent bool
	Err        error
}

// Subscriber receives the result of a request. It is called from the
// scheduler's goroutine, outside any scheduler lock.
type Subscriber func(Result)

// Cache is the part of cache.Cache the scheduler needs.
type Cache interface {
	Get(key string) (cache.Entry, bool)
	Put(key, content string)
	IsFresh(e cache.Entry) bool
}

// Stats is a point-in-time view of the scheduler state.
type Stats struct {
	Queued        int
	Outstanding   int
	InFlight      bool
	CountInWindow int
	WindowStart   time.Time // oldest admission still inside the window
	RateLimited   bool
}

type pending struct {
	id      uuid.UUID
	key     string
	subject Subject
	subs    []Subscriber
}

// Scheduler is a deduplicating, rate-limited FIFO queue that resolves
// subjects through a Fetcher and writes every outcome into a Cache.
//
// At most one fetch runs at a time. Admissions are counted in a sliding
// window: no WindowDuration-long interval contains more than RequestBudget
// fetch starts. Queued requests are delayed, never dropped, by the budget.
type Scheduler struct {
	cache   Cache
	fetcher Fetcher
	opt     Options
	clk     clock.Clock
	log     *slog.Logger
	warn    *rate.Sometimes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// ---- guarded by mu ----
	mu               sync.Mutex
	queue            []*pending
	outstanding      map[string]*pending
	admissions       []time.Time // fetch starts inside the current window, oldest first
	rateLimited      bool
	rateLimitedUntil time.Time
	inFlight         bool
	timer            clock.Timer // pacing or window wait; nil when none armed
	gen              uint64      // bumped by Reset/Close; stale completions compare against it
	closed           bool

	closeOnce sync.Once
}

// New constructs a Scheduler writing into c and resolving through f.
func New(c Cache, f Fetcher, opt Options) *Scheduler {
	if c == nil || f == nil {
		panic("scheduler: nil cache or fetcher")
	}
	opt.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cache:       c,
		fetcher:     f,
		opt:         opt,
		clk:         opt.Clock,
		log:         opt.Logger.With("component", "scheduler"),
		warn:        &rate.Sometimes{Interval: opt.WindowDuration},
		ctx:         ctx,
		cancel:      cancel,
		outstanding: make(map[string]*pending),
	}
}

// Request asks for key to be resolved and onResolve (may be nil) to be
// called with the outcome. If a request for key is already pending, the
// subscriber is attached to it and Request returns false; otherwise a new
// request is queued and Request returns true.
func (s *Scheduler) Request(key string, subject Subject, onResolve Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if p, ok := s.outstanding[key]; ok {
		if onResolve != nil {
			p.subs = append(p.subs, onResolve)
		}
		s.opt.Metrics.Deduplicated()
		return false
	}

	p := &pending{id: uuid.New(), key: key, subject: subject}
	if onResolve != nil {
		p.subs = append(p.subs, onResolve)
	}
	s.outstanding[key] = p
	s.queue = append(s.queue, p)
	s.opt.Metrics.Enqueued()
	s.opt.Metrics.QueueDepth(len(s.queue))
	s.log.Debug("request queued", "key", key, "request_id", p.id, "queued", len(s.queue))

	s.pumpLocked()
	return true
}

// IsOutstanding reports whether a request for key is queued or in flight.
func (s *Scheduler) IsOutstanding(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.outstanding[key]
	return ok
}

// IsRateLimited reports whether the upstream rate-limit signal is in effect.
func (s *Scheduler) IsRateLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollLocked(s.clk.Now())
	return s.rateLimited
}

// Reset drops the queue and all pending bookkeeping without notifying
// subscribers. A fetch already in flight still writes its result into the
// cache and keeps the fetch slot until it settles, so requests made after
// Reset queue behind it. The admission window is kept: the remote limiter
// does not forget.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := len(s.outstanding)
	s.resetLocked()
	s.log.Debug("scheduler reset", "dropped", dropped)
}

// Stats returns a snapshot of the scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollLocked(s.clk.Now())
	st := Stats{
		Queued:        len(s.queue),
		Outstanding:   len(s.outstanding),
		InFlight:      s.inFlight,
		CountInWindow: len(s.admissions),
		RateLimited:   s.rateLimited,
	}
	if len(s.admissions) > 0 {
		st.WindowStart = s.admissions[0]
	}
	return st
}

// Close resets the scheduler, cancels an in-flight fetch and waits for it
// to settle. Further requests are ignored. It is idempotent.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.resetLocked()
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
	})
	return nil
}

// ---- draining ----

func (s *Scheduler) resetLocked() {
	s.gen++
	s.stopTimerLocked()
	for i := range s.queue {
		s.queue[i] = nil
	}
	s.queue = nil
	s.outstanding = make(map[string]*pending)
	s.opt.Metrics.QueueDepth(0)
}

// rollLocked forgets admissions and rate-limit state older than the window.
func (s *Scheduler) rollLocked(now time.Time) {
	i := 0
	for i < len(s.admissions) && now.Sub(s.admissions[i]) >= s.opt.WindowDuration {
		i++
	}
	if i > 0 {
		s.admissions = append(s.admissions[:0], s.admissions[i:]...)
	}
	if s.rateLimited && !now.Before(s.rateLimitedUntil) {
		s.rateLimited = false
		s.log.Info("upstream rate limit lifted")
	}
}

// pumpLocked runs one admission check: it starts the head of the queue, or
// arms a timer for when admission becomes possible. It does nothing while a
// fetch is in flight or a timer is armed.
func (s *Scheduler) pumpLocked() {
	if s.closed || s.inFlight || s.timer != nil || len(s.queue) == 0 {
		return
	}

	now := s.clk.Now()
	s.rollLocked(now)

	if wait := s.admissionWaitLocked(now); wait > 0 {
		s.opt.Metrics.Deferred()
		s.warn.Do(func() {
			s.log.Warn("request budget exhausted, delaying queue",
				"queued", len(s.queue),
				"wait", wait,
				"upstream_limited", s.rateLimited)
		})
		s.armLocked(wait)
		return
	}

	p := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.admissions = append(s.admissions, now)
	s.inFlight = true
	s.opt.Metrics.QueueDepth(len(s.queue))

	s.wg.Add(1)
	go s.execute(p, s.gen)
}

// admissionWaitLocked returns how long until the next fetch may start.
func (s *Scheduler) admissionWaitLocked(now time.Time) time.Duration {
	var wait time.Duration
	if len(s.admissions) >= s.opt.RequestBudget {
		oldest := s.admissions[len(s.admissions)-s.opt.RequestBudget]
		wait = oldest.Add(s.opt.WindowDuration).Sub(now)
	}
	if s.rateLimited {
		if w := s.rateLimitedUntil.Sub(now); w > wait {
			wait = w
		}
	}
	return wait
}

func (s *Scheduler) armLocked(d time.Duration) {
	s.stopTimerLocked()
	gen := s.gen
	s.timer = s.clk.AfterFunc(d, func() { s.resume(gen) })
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) resume(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.timer = nil
	s.pumpLocked()
}

func (s *Scheduler) execute(p *pending, gen uint64) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.opt.FetchTimeout)
	start := s.clk.Now()
	content, err := s.fetch(ctx, p)
	cancel()

	s.finish(p, gen, content, err, s.clk.Now().Sub(start))
}

// fetch calls the Fetcher, converting a panic into an error so one bad
// response cannot take the queue down.
func (s *Scheduler) fetch(ctx context.Context, p *pending) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("scheduler: fetcher panicked: %v", r)
		}
	}()
	return s.fetcher.Fetch(ctx, p.subject.ID, p.subject.ContextID)
}

func (s *Scheduler) finish(p *pending, gen uint64, content string, err error, took time.Duration) {
	if err != nil && s.ctx.Err() != nil {
		// Cancelled by Close; the failure says nothing about the key.
		s.log.Debug("fetch cancelled", "key", p.key, "request_id", p.id)
		return
	}

	outcome := OutcomeContent
	switch {
	case errors.Is(err, ErrRateLimited):
		outcome = OutcomeRateLimited
	case err != nil:
		outcome = OutcomeError
	case !cache.HasContent(content):
		outcome = OutcomeEmpty
	}
	if err != nil {
		content = ""
	}

	// The cache write happens even for a superseded request: it is still
	// valid data for the key. The next fetch cannot start before inFlight is
	// cleared below, so writes for a key stay in fetch order.
	s.cache.Put(p.key, content)
	s.opt.Metrics.Fetched(outcome, took)

	res := Result{Key: p.key, Content: content, HasContent: cache.HasContent(content), Err: err}

	s.mu.Lock()
	if outcome == OutcomeRateLimited {
		now := s.clk.Now()
		s.rateLimited = true
		s.rateLimitedUntil = now.Add(s.opt.WindowDuration)
		s.log.Warn("upstream rate limit hit", "key", p.key, "request_id", p.id,
			"until", s.rateLimitedUntil)
	}

	var subs []Subscriber
	if gen == s.gen {
		if s.outstanding[p.key] == p {
			delete(s.outstanding, p.key)
		}
		subs = p.subs
	}
	s.inFlight = false
	if len(s.queue) > 0 {
		s.armLocked(s.opt.InterRequestDelay)
	}
	s.mu.Unlock()

	lvl := slog.LevelDebug
	if outcome == OutcomeError {
		lvl = slog.LevelWarn
	}
	s.log.Log(context.Background(), lvl, "fetch settled",
		"key", p.key,
		"request_id", p.id,
		"outcome", outcome.String(),
		"duration_ms", took.Milliseconds(),
		"subscribers", len(subs),
		"error", err)

	for _, fn := range subs {
		fn(res)
	}
}
