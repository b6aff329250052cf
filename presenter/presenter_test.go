package presenter

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// stubRequester records requests and lets the test resolve them by hand.
type stubRequester struct {
	mu          sync.Mutex
	calls       []string
	subs        map[string][]scheduler.Subscriber
	rateLimited bool
}

func newStubRequester() *stubRequester {
	return &stubRequester{subs: map[string][]scheduler.Subscriber{}}
}

func (r *stubRequester) Request(key string, _ scheduler.Subject, fn scheduler.Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, key)
	_, dup := r.subs[key]
	r.subs[key] = append(r.subs[key], fn)
	return !dup
}

func (r *stubRequester) IsRateLimited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rateLimited
}

func (r *stubRequester) requested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *stubRequester) resolve(res scheduler.Result) {
	r.mu.Lock()
	subs := r.subs[res.Key]
	delete(r.subs, res.Key)
	r.mu.Unlock()
	for _, fn := range subs {
		fn(res)
	}
}

type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) Render(v View) {
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
}

func (r *recorder) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

func (r *recorder) lastView(t *testing.T) View {
	t.Helper()
	vs := r.all()
	require.NotEmpty(t, vs, "no view rendered")
	return vs[len(vs)-1]
}

type stubLayout struct {
	mu       sync.Mutex
	triggers map[string]Rect
	surface  Rect
	hasSurf  bool
}

func (l *stubLayout) TriggerBounds(s Subject) (Rect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.triggers[s.Key()]
	return r, ok
}

func (l *stubLayout) SurfaceBounds() (Rect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.surface, l.hasSurf
}

type fixture struct {
	clk   *clock.Fake
	cache cache.Cache
	req   *stubRequester
	rec   *recorder
	p     *Presenter
}

func newFixture(t *testing.T, opt Options) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Time{})
	c := cache.New(cache.Options{Clock: clk})
	t.Cleanup(func() { _ = c.Close() })
	if opt.ShowDelay == 0 {
		opt.ShowDelay = 100 * time.Millisecond
	}
	if opt.HideDelay == 0 {
		opt.HideDelay = 300 * time.Millisecond
	}
	if opt.WatchdogInterval == 0 {
		opt.WatchdogInterval = -1
	}
	opt.Clock = clk
	f := &fixture{clk: clk, cache: c, req: newStubRequester(), rec: &recorder{}}
	f.p = New(c, f.req, f.rec, opt)
	t.Cleanup(func() { _ = f.p.Close() })
	return f
}

var (
	subjA = Subject{ID: "7", ContextID: "21"}
	subjB = Subject{ID: "7", ContextID: "22"}
)

func TestPresenter_DebounceShow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(99 * time.Millisecond)
	f.p.TriggerLeave()
	f.clk.Advance(time.Second)

	assert.Empty(t, f.rec.all())
	assert.Empty(t, f.req.requested())
	assert.Equal(t, PhaseInactive, f.p.State().Phase)
}

func TestPresenter_ShowAfterDelayRequestsMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	assert.Empty(t, f.rec.all())
	f.clk.Advance(100 * time.Millisecond)

	v := f.rec.lastView(t)
	assert.Equal(t, subjA, v.Subject)
	assert.True(t, v.Visible)
	assert.True(t, v.Loading)
	assert.Equal(t, []string{"7-21"}, f.req.requested())

	f.req.resolve(scheduler.Result{Key: "7-21", Content: "rewatch later", HasContent: true})
	v = f.rec.lastView(t)
	assert.False(t, v.Loading)
	assert.True(t, v.HasContent)
	assert.Equal(t, "rewatch later", v.Content)
	assert.Equal(t, PhaseVisible, f.p.State().Phase)
}

func TestPresenter_LatestTriggerWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(50 * time.Millisecond)
	f.p.TriggerEnter(subjB)
	f.clk.Advance(60 * time.Millisecond)
	assert.Empty(t, f.rec.all(), "restarted show timer must not fire early")
	f.clk.Advance(40 * time.Millisecond)

	assert.Equal(t, subjB, f.rec.lastView(t).Subject)
	assert.Equal(t, []string{"7-22"}, f.req.requested())
}

func TestPresenter_FreshCacheNoRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.cache.Put("7-21", "cached note")

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)

	v := f.rec.lastView(t)
	assert.Equal(t, "cached note", v.Content)
	assert.False(t, v.Stale)
	assert.False(t, v.Loading)
	assert.Empty(t, f.req.requested())
}

func TestPresenter_StaleCacheShownWhileRefreshing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.cache.Put("7-21", "old note")
	f.clk.Advance(cache.DefaultPositiveTTL + time.Minute)

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)

	v := f.rec.lastView(t)
	assert.Equal(t, "old note", v.Content)
	assert.True(t, v.Stale)
	assert.False(t, v.Loading)
	assert.Equal(t, []string{"7-21"}, f.req.requested())
}

func TestPresenter_RateLimitedSkipsRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.req.rateLimited = true

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)

	v := f.rec.lastView(t)
	assert.True(t, v.RateLimited)
	assert.False(t, v.Loading)
	assert.Empty(t, f.req.requested())
}

func TestPresenter_ClickPins(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{PinDuration: 2 * time.Second})
	f.cache.Put("7-21", "note")

	f.p.Click(subjA)
	v := f.rec.lastView(t)
	assert.True(t, v.Visible)
	assert.True(t, v.Pinned)

	f.p.TriggerEnter(subjA)
	f.p.TriggerLeave()
	f.clk.Advance(2*time.Second - time.Millisecond)
	st := f.p.State()
	assert.Equal(t, PhaseVisible, st.Phase)
	assert.True(t, st.Pinned)

	f.clk.Advance(time.Millisecond)
	assert.Equal(t, PhaseHiding, f.p.State().Phase)
	assert.False(t, f.rec.lastView(t).Visible)
}

func TestPresenter_PinExpiryWhileHoveredKeepsVisible(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{PinDuration: time.Second})

	f.p.Click(subjA)
	f.p.SurfaceEnter()
	f.clk.Advance(time.Second)

	st := f.p.State()
	assert.Equal(t, PhaseVisible, st.Phase)
	assert.False(t, st.Pinned)
	assert.False(t, f.rec.lastView(t).Pinned)
}

func TestPresenter_ResultForSupersededSubjectIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.p.TriggerEnter(subjB) // immediate switch while visible
	require.Equal(t, subjB, f.p.State().Active)

	before := len(f.rec.all())
	f.req.resolve(scheduler.Result{Key: "7-21", Content: "for A", HasContent: true})
	assert.Len(t, f.rec.all(), before, "no render for a superseded subject")
	assert.Equal(t, subjB, f.rec.lastView(t).Subject)
}

func TestPresenter_ImmediateSwitchWhileVisible(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.cache.Put("7-22", "B note")

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.p.TriggerLeave()
	f.p.TriggerEnter(subjB)

	v := f.rec.lastView(t)
	assert.Equal(t, subjB, v.Subject)
	assert.Equal(t, "B note", v.Content)
	assert.True(t, v.Visible)
}

func TestPresenter_SurfaceKeepsVisible(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.p.TriggerLeave()
	f.clk.Advance(200 * time.Millisecond)
	f.p.SurfaceEnter()
	f.clk.Advance(time.Second)
	assert.Equal(t, PhaseVisible, f.p.State().Phase)

	f.p.SurfaceLeave()
	f.clk.Advance(299 * time.Millisecond)
	assert.Equal(t, PhaseVisible, f.p.State().Phase)
	f.clk.Advance(time.Millisecond)
	assert.Equal(t, PhaseHiding, f.p.State().Phase)
}

func TestPresenter_HideClearsSubjectAfterAnimation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{HideAnimation: 150 * time.Millisecond})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.p.TriggerLeave()
	f.clk.Advance(300 * time.Millisecond)

	st := f.p.State()
	assert.Equal(t, PhaseHiding, st.Phase)
	assert.True(t, st.HasActive)
	assert.Equal(t, subjA, st.Active)

	f.clk.Advance(150 * time.Millisecond)
	st = f.p.State()
	assert.Equal(t, PhaseInactive, st.Phase)
	assert.False(t, st.HasActive)
}

func TestPresenter_ReenterDuringHide(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.p.TriggerLeave()
	f.clk.Advance(300 * time.Millisecond)
	require.Equal(t, PhaseHiding, f.p.State().Phase)

	f.p.TriggerEnter(subjA)
	assert.Equal(t, PhaseVisible, f.p.State().Phase)
	assert.True(t, f.rec.lastView(t).Visible)
	f.clk.Advance(time.Second)
	assert.Equal(t, PhaseVisible, f.p.State().Phase, "clear timer must be cancelled")
}

func TestPresenter_WatchdogHidesOnMissedLeave(t *testing.T) {
	t.Parallel()
	layout := &stubLayout{
		triggers: map[string]Rect{"7-21": {Left: 0, Top: 0, Right: 100, Bottom: 20}},
		surface:  Rect{Left: 0, Top: 30, Right: 200, Bottom: 130},
		hasSurf:  true,
	}
	f := newFixture(t, Options{WatchdogInterval: 250 * time.Millisecond, Layout: layout})

	f.p.PointerMove(Point{X: 10, Y: 10})
	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.clk.Advance(time.Second)
	assert.Equal(t, PhaseVisible, f.p.State().Phase, "pointer still on trigger")

	// The leave event never arrives.
	f.p.PointerMove(Point{X: 500, Y: 500})
	f.clk.Advance(250 * time.Millisecond)
	assert.Equal(t, PhaseHiding, f.p.State().Phase)
}

func TestPresenter_ErrorShownInline(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.req.resolve(scheduler.Result{Key: "7-21", Err: errors.New("boom")})

	v := f.rec.lastView(t)
	assert.True(t, v.Visible)
	assert.EqualError(t, v.Err, "boom")
	assert.False(t, v.RateLimited)

	f.p.TriggerLeave()
	f.p.TriggerEnter(subjB)
	f.req.resolve(scheduler.Result{Key: "7-22", Err: errors.Wrap(scheduler.ErrRateLimited, "anilist")})
	assert.True(t, f.rec.lastView(t).RateLimited)
}

func TestPresenter_DismissAndClose(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	f.p.TriggerEnter(subjA)
	f.clk.Advance(100 * time.Millisecond)
	f.p.Dismiss()
	assert.Equal(t, PhaseInactive, f.p.State().Phase)
	assert.Zero(t, f.clk.Pending())

	require.NoError(t, f.p.Close())
	require.NoError(t, f.p.Close())

	n := len(f.rec.all())
	f.p.TriggerEnter(subjB)
	f.clk.Advance(time.Second)
	f.req.resolve(scheduler.Result{Key: "7-21", Content: "late", HasContent: true})
	assert.Len(t, f.rec.all(), n)
}

func TestPresenter_RendererMayReenter(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(time.Time{})
	c := cache.New(cache.Options{Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	var p *Presenter
	var got []Phase
	p = New(c, newStubRequester(), RendererFunc(func(v View) {
		got = append(got, v.Phase)
		if v.Visible {
			p.Dismiss()
		}
	}), Options{Clock: clk, WatchdogInterval: -1})

	p.Click(subjA)
	assert.Equal(t, []Phase{PhaseVisible, PhaseInactive}, got)
}

func TestNew_RejectsHideNotAfterShow(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		New(cache.New(cache.Options{}), newStubRequester(), &recorder{},
			Options{ShowDelay: time.Second, HideDelay: time.Second})
	})
}

func TestRect_Contains(t *testing.T) {
	t.Parallel()
	r := Rect{Left: 1, Top: 1, Right: 3, Bottom: 3}
	assert.True(t, r.Contains(Point{X: 1, Y: 3}))
	assert.False(t, r.Contains(Point{X: 0.9, Y: 2}))
	assert.Equal(t, "hiding", PhaseHiding.String())
}
