package presenter

import (
	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// Phase is the presentation phase of the shared surface.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseShowing
	PhaseVisible
	PhaseHiding
)

func (p Phase) String() string {
	switch p {
	case PhaseShowing:
		return "showing"
	case PhaseVisible:
		return "visible"
	case PhaseHiding:
		return "hiding"
	default:
		return "inactive"
	}
}

// Subject is the hovered entity; Key() is its cache key.
type Subject = scheduler.Subject

// Point is a pointer position in page coordinates.
type Point struct{ X, Y float64 }

// Rect is an axis-aligned bounding box in page coordinates.
type Rect struct{ Left, Top, Right, Bottom float64 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Layout reports current bounding boxes. ok is false when the element is
// not on the page (e.g. the list re-rendered).
type Layout interface {
	TriggerBounds(s Subject) (r Rect, ok bool)
	SurfaceBounds() (r Rect, ok bool)
}

// View is one display update for the surface.
type View struct {
	Subject Subject
	Phase   Phase
	Visible bool

	Content    string
	HasContent bool
	// Loading is set when nothing is cached yet and a fetch is pending.
	Loading bool
	// Stale is set when cached content is shown while a refresh is pending.
	Stale bool
	// RateLimited is set when a refresh was skipped because the remote
	// rate limit is in effect.
	RateLimited bool
	Pinned      bool

	// Err is the failure of the last fetch for Subject, shown inline.
	Err error
}

// Renderer receives display updates. Render is never called with the
// presenter lock held, so it may call back into the Presenter.
type Renderer interface {
	Render(v View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

// Render calls f.
func (f RendererFunc) Render(v View) { f(v) }

// Reader is the part of cache.Cache the presenter reads.
type Reader interface {
	Get(key string) (cache.Entry, bool)
	IsFresh(e cache.Entry) bool
}

// Requester is the part of scheduler.Scheduler the presenter drives.
type Requester interface {
	Request(key string, s scheduler.Subject, onResolve scheduler.Subscriber) bool
	IsRateLimited() bool
}

// State is a snapshot of the presentation state.
type State struct {
	Phase     Phase
	Active    Subject
	HasActive bool
	OnTrigger bool
	OnSurface bool
	Pinned    bool
}

var (
	_ Reader    = (cache.Cache)(nil)
	_ Requester = (*scheduler.Scheduler)(nil)
)
