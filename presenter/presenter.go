package presenter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

type timerName string

const (
	timerShow     timerName = "show"
	timerHide     timerName = "hide"
	timerClear    timerName = "clear"
	timerPin      timerName = "pin"
	timerWatchdog timerName = "watchdog"
)

type slot struct {
	t  clock.Timer
	id uint64
}

// Presenter drives one shared hover surface for many triggers.
//
// Input events arrive through the exported methods; timers are debounced
// per name and a superseded timer never acts. Display updates are queued
// while the state lock is held and delivered to the Renderer after it is
// released, in order.
type Presenter struct {
	cache  Reader
	sched  Requester
	render Renderer
	opt    Options
	clk    clock.Clock
	log    *slog.Logger

	// ---- guarded by mu ----
	mu         sync.Mutex
	phase      Phase
	active     Subject
	hasActive  bool
	pending    Subject
	hasPending bool
	onTrigger  bool
	onSurface  bool
	pinned     bool
	pointer    Point
	hasPointer bool
	timers     map[timerName]slot
	timerSeq   uint64
	last       View
	out        []View
	flushing   bool
	closed     bool

	closeOnce sync.Once
}

// New returns a Presenter reading c, requesting through s and rendering to r.
// It panics when HideDelay does not exceed ShowDelay.
func New(c Reader, s Requester, r Renderer, opt Options) *Presenter {
	if c == nil || s == nil || r == nil {
		panic("presenter: nil cache, requester or renderer")
	}
	opt.applyDefaults()
	if opt.HideDelay <= opt.ShowDelay {
		panic("presenter: HideDelay must exceed ShowDelay")
	}
	return &Presenter{
		cache:  c,
		sched:  s,
		render: r,
		opt:    opt,
		clk:    opt.Clock,
		log:    opt.Logger.With("component", "presenter"),
		timers: make(map[timerName]slot),
	}
}

// TriggerEnter reports the pointer entering the trigger of s.
func (p *Presenter) TriggerEnter(s Subject) {
	p.do(func() { p.triggerEnterLocked(s) })
}

// TriggerLeave reports the pointer leaving the current trigger.
func (p *Presenter) TriggerLeave() {
	p.do(p.triggerLeaveLocked)
}

// SurfaceEnter reports the pointer entering the shared surface.
func (p *Presenter) SurfaceEnter() {
	p.do(p.surfaceEnterLocked)
}

// SurfaceLeave reports the pointer leaving the shared surface.
func (p *Presenter) SurfaceLeave() {
	p.do(p.surfaceLeaveLocked)
}

// Click shows s immediately and keeps it open for PinDuration regardless
// of hover.
func (p *Presenter) Click(s Subject) {
	p.do(func() { p.clickLocked(s) })
}

// PointerMove records the pointer position used by the watchdog.
func (p *Presenter) PointerMove(pt Point) {
	p.mu.Lock()
	p.pointer = pt
	p.hasPointer = true
	p.mu.Unlock()
}

// Dismiss hides the surface at once, skipping the hide animation.
func (p *Presenter) Dismiss() {
	p.do(p.dismissLocked)
}

// State returns a snapshot of the presentation state.
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Phase:     p.phase,
		Active:    p.active,
		HasActive: p.hasActive,
		OnTrigger: p.onTrigger,
		OnSurface: p.onSurface,
		Pinned:    p.pinned,
	}
}

// Close dismisses the surface and stops all timers. Later events and
// late fetch results are ignored. It is idempotent.
func (p *Presenter) Close() error {
	p.closeOnce.Do(func() {
		p.do(func() {
			p.dismissLocked()
			p.closed = true
		})
	})
	return nil
}

// do runs fn under the lock, then delivers the views it queued.
func (p *Presenter) do(fn func()) {
	p.mu.Lock()
	if !p.closed {
		fn()
	}
	p.mu.Unlock()
	p.flush()
}

// flush delivers queued views outside the lock. A call made while another
// goroutine (or the renderer itself) is flushing leaves its views to that
// flusher, which keeps delivery ordered.
func (p *Presenter) flush() {
	p.mu.Lock()
	if p.flushing {
		p.mu.Unlock()
		return
	}
	p.flushing = true
	for len(p.out) > 0 {
		out := p.out
		p.out = nil
		p.mu.Unlock()
		for _, v := range out {
			p.render.Render(v)
		}
		p.mu.Lock()
	}
	p.flushing = false
	p.mu.Unlock()
}

func (p *Presenter) emitLocked(v View) {
	p.last = v
	p.out = append(p.out, v)
}

// ---- timers ----

func (p *Presenter) setTimerLocked(name timerName, d time.Duration, fn func()) {
	p.cancelLocked(name)
	p.timerSeq++
	id := p.timerSeq
	t := p.clk.AfterFunc(d, func() { p.fire(name, id, fn) })
	p.timers[name] = slot{t: t, id: id}
}

func (p *Presenter) cancelLocked(name timerName) {
	if s, ok := p.timers[name]; ok {
		s.t.Stop()
		delete(p.timers, name)
	}
}

func (p *Presenter) cancelAllLocked() {
	for name, s := range p.timers {
		s.t.Stop()
		delete(p.timers, name)
	}
}

// fire runs fn if the timer is still the current one for its name. A timer
// that was cancelled or re-armed after it was already due does nothing.
func (p *Presenter) fire(name timerName, id uint64, fn func()) {
	p.mu.Lock()
	cur, ok := p.timers[name]
	if p.closed || !ok || cur.id != id {
		p.mu.Unlock()
		return
	}
	delete(p.timers, name)
	fn()
	p.mu.Unlock()
	p.flush()
}

// ---- transitions ----

func (p *Presenter) triggerEnterLocked(s Subject) {
	p.onTrigger = true
	p.cancelLocked(timerHide)

	if p.phase == PhaseInactive {
		p.pending = s
		p.hasPending = true
		p.setTimerLocked(timerShow, p.opt.ShowDelay, p.showPendingLocked)
		return
	}

	if p.hasActive && p.active == s {
		if p.phase == PhaseHiding {
			p.cancelLocked(timerClear)
			p.emitLocked(p.loadLocked(s))
			p.phase = PhaseVisible
			p.armWatchdogLocked()
		}
		return
	}

	// The surface is already on screen: move it to the new trigger
	// without waiting for the show delay.
	p.cancelLocked(timerShow)
	p.cancelLocked(timerClear)
	p.hasPending = false
	if p.pinned {
		p.pinned = false
		p.cancelLocked(timerPin)
	}
	p.log.Debug("switching subject", "from", p.active.Key(), "to", s.Key())
	p.activateLocked(s)
}

func (p *Presenter) showPendingLocked() {
	if !p.hasPending || !p.onTrigger {
		return
	}
	s := p.pending
	p.hasPending = false
	p.activateLocked(s)
}

func (p *Presenter) triggerLeaveLocked() {
	p.onTrigger = false
	if p.phase == PhaseInactive {
		p.cancelLocked(timerShow)
		p.hasPending = false
		return
	}
	p.maybeHideLocked()
}

func (p *Presenter) surfaceEnterLocked() {
	p.onSurface = true
	p.cancelLocked(timerHide)
	if p.phase == PhaseHiding && p.hasActive {
		p.cancelLocked(timerClear)
		p.emitLocked(p.loadLocked(p.active))
		p.phase = PhaseVisible
		p.armWatchdogLocked()
	}
}

func (p *Presenter) surfaceLeaveLocked() {
	p.onSurface = false
	p.maybeHideLocked()
}

func (p *Presenter) clickLocked(s Subject) {
	p.cancelAllLocked()
	p.hasPending = false
	p.pinned = true
	p.activateLocked(s)
	p.setTimerLocked(timerPin, p.opt.PinDuration, p.unpinLocked)
}

func (p *Presenter) unpinLocked() {
	p.pinned = false
	if p.phase != PhaseVisible && p.phase != PhaseShowing {
		return
	}
	if !p.onTrigger && !p.onSurface {
		p.beginHideLocked()
		return
	}
	v := p.last
	v.Pinned = false
	p.emitLocked(v)
}

func (p *Presenter) maybeHideLocked() {
	if p.onTrigger || p.onSurface || p.pinned {
		return
	}
	if p.phase == PhaseVisible || p.phase == PhaseShowing {
		p.setTimerLocked(timerHide, p.opt.HideDelay, p.beginHideLocked)
	}
}

// activateLocked makes s the active subject and renders whatever the
// cache holds for it.
func (p *Presenter) activateLocked(s Subject) {
	p.active = s
	p.hasActive = true
	p.phase = PhaseShowing
	v := p.loadLocked(s)
	p.phase = PhaseVisible
	v.Phase = PhaseVisible
	p.emitLocked(v)
	p.armWatchdogLocked()
}

// loadLocked builds the view for s from the cache and requests a fetch
// when the entry is missing or stale, unless the remote rate limit is on.
func (p *Presenter) loadLocked(s Subject) View {
	v := View{Subject: s, Phase: PhaseVisible, Visible: true, Pinned: p.pinned}
	key := s.Key()
	e, ok := p.cache.Get(key)
	fresh := ok && p.cache.IsFresh(e)
	if ok {
		v.Content = e.Content
		v.HasContent = e.HasContent()
		v.Stale = !fresh
	}
	if fresh {
		return v
	}
	if p.sched.IsRateLimited() {
		v.RateLimited = true
		p.log.Debug("rate limited, not requesting", "key", key)
		return v
	}
	v.Loading = !ok
	p.sched.Request(key, s, func(res scheduler.Result) { p.resolved(s, res) })
	return v
}

// resolved renders a fetch outcome if s is still the one on screen.
func (p *Presenter) resolved(s Subject, res scheduler.Result) {
	p.mu.Lock()
	if p.closed || !p.hasActive || p.active != s ||
		(p.phase != PhaseVisible && p.phase != PhaseShowing) {
		p.mu.Unlock()
		p.log.Debug("dropping result for inactive subject", "key", res.Key)
		return
	}
	v := View{
		Subject:    s,
		Phase:      p.phase,
		Visible:    true,
		Content:    res.Content,
		HasContent: res.HasContent,
		Pinned:     p.pinned,
		Err:        res.Err,
	}
	if res.Err != nil {
		v.RateLimited = errors.Is(res.Err, scheduler.ErrRateLimited)
		// Keep showing what was cached before the failed refresh.
		if e, ok := p.cache.Get(s.Key()); ok && e.HasContent() {
			v.Content = e.Content
			v.HasContent = true
		}
	}
	p.emitLocked(v)
	p.mu.Unlock()
	p.flush()
}

func (p *Presenter) armWatchdogLocked() {
	if p.opt.WatchdogInterval > 0 {
		p.setTimerLocked(timerWatchdog, p.opt.WatchdogInterval, p.watchdogLocked)
	}
}

// watchdogLocked catches a missed leave event: while visible, it checks
// the pointer against the current geometry and hides when it is over
// neither the trigger nor the surface.
func (p *Presenter) watchdogLocked() {
	if p.phase != PhaseVisible {
		return
	}
	if p.opt.Layout != nil && p.hasPointer {
		tr, ok := p.opt.Layout.TriggerBounds(p.active)
		p.onTrigger = ok && tr.Contains(p.pointer)
		sr, ok := p.opt.Layout.SurfaceBounds()
		p.onSurface = ok && sr.Contains(p.pointer)
		if !p.onTrigger && !p.onSurface && !p.pinned {
			p.log.Debug("pointer outside trigger and surface, hiding", "key", p.active.Key())
			p.beginHideLocked()
			return
		}
	}
	p.armWatchdogLocked()
}

func (p *Presenter) beginHideLocked() {
	p.cancelLocked(timerHide)
	p.cancelLocked(timerShow)
	p.cancelLocked(timerWatchdog)
	if p.phase != PhaseVisible && p.phase != PhaseShowing {
		return
	}
	p.phase = PhaseHiding
	p.emitLocked(View{Subject: p.active, Phase: PhaseHiding})
	p.setTimerLocked(timerClear, p.opt.HideAnimation, p.finishHideLocked)
}

func (p *Presenter) finishHideLocked() {
	p.phase = PhaseInactive
	p.active = Subject{}
	p.hasActive = false
	p.pinned = false
	p.emitLocked(View{Phase: PhaseInactive})
}

func (p *Presenter) dismissLocked() {
	p.cancelAllLocked()
	p.hasPending = false
	p.onTrigger = false
	p.onSurface = false
	p.pinned = false
	if p.phase == PhaseInactive {
		return
	}
	p.phase = PhaseInactive
	p.active = Subject{}
	p.hasActive = false
	p.emitLocked(View{Phase: PhaseInactive})
}
