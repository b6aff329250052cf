// Package session assembles the cache, scheduler and presenter for one page
// session and owns their lifecycle.
package session

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/presenter"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// Options carries the per-component options. Logger and Clock, when set,
// are used for every component that does not set its own.
type Options struct {
	Cache     cache.Options
	Scheduler scheduler.Options
	Presenter presenter.Options
	Logger    *slog.Logger
	Clock     clock.Clock
}

// Session is constructed once per page session. Components are exported
// for inspection; callers drive it through the presenter and the methods
// below.
type Session struct {
	Cache     cache.Cache
	Scheduler *scheduler.Scheduler
	Presenter *presenter.Presenter

	log       *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// New wires the components: the presenter reads the cache and requests
// through the scheduler, which fetches with f and writes into the cache.
func New(f scheduler.Fetcher, r presenter.Renderer, opt Options) *Session {
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	opt.Clock = clock.Or(opt.Clock)

	if opt.Cache.Logger == nil {
		opt.Cache.Logger = opt.Logger
	}
	if opt.Cache.Clock == nil {
		opt.Cache.Clock = opt.Clock
	}
	if opt.Scheduler.Logger == nil {
		opt.Scheduler.Logger = opt.Logger
	}
	if opt.Scheduler.Clock == nil {
		opt.Scheduler.Clock = opt.Clock
	}
	if opt.Presenter.Logger == nil {
		opt.Presenter.Logger = opt.Logger
	}
	if opt.Presenter.Clock == nil {
		opt.Presenter.Clock = opt.Clock
	}

	c := cache.New(opt.Cache)
	s := scheduler.New(c, f, opt.Scheduler)
	p := presenter.New(c, s, r, opt.Presenter)
	return &Session{
		Cache:     c,
		Scheduler: s,
		Presenter: p,
		log:       opt.Logger.With("component", "session"),
	}
}

// Navigate handles an in-page navigation: the entry list is gone, so the
// surface is dismissed and queued requests are dropped. Cached entries and
// the request budget survive.
func (s *Session) Navigate() {
	s.Presenter.Dismiss()
	s.Scheduler.Reset()
	s.log.Debug("navigated, queue reset")
}

// Hydrate queues refreshes for the subjects of a freshly rendered list and
// returns how many were queued.
func (s *Session) Hydrate(subjects []scheduler.Subject) int {
	return s.Scheduler.Hydrate(subjects)
}

// Close tears down the presenter, then the scheduler (cancelling and
// waiting for an in-flight fetch), then the cache with a final save. It is
// idempotent and returns the save error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.Presenter.Close()
		_ = s.Scheduler.Close()
		if err := s.Cache.Close(); err != nil {
			s.closeErr = errors.Wrap(err, "session: close cache")
		}
	})
	return s.closeErr
}
