package presenter

import (
	"log/slog"
	"time"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/clock"
)

// Options configures the presenter. Zero durations take the defaults below;
// a negative WatchdogInterval disables the watchdog and a negative
// HideAnimation ends the hide on the next timer tick.
type Options struct {
	// ShowDelay debounces trigger hover before the surface opens.
	ShowDelay time.Duration
	// HideDelay must exceed ShowDelay: it leaves time to move the pointer
	// from the trigger onto the surface.
	HideDelay time.Duration
	// PinDuration is how long a click keeps the surface open.
	PinDuration time.Duration
	// WatchdogInterval is the period of the missed-leave check while visible.
	WatchdogInterval time.Duration
	// HideAnimation is how long the surface stays in PhaseHiding before the
	// active subject is cleared.
	HideAnimation time.Duration

	// Layout enables the watchdog's geometry check. Without it the
	// watchdog only re-arms.
	Layout Layout
	Logger *slog.Logger
	Clock  clock.Clock
}

const (
	DefaultShowDelay        = 150 * time.Millisecond
	DefaultHideDelay        = 400 * time.Millisecond
	DefaultPinDuration      = 5 * time.Second
	DefaultWatchdogInterval = 250 * time.Millisecond
	DefaultHideAnimation    = 150 * time.Millisecond
)

func (o *Options) applyDefaults() {
	if o.ShowDelay <= 0 {
		o.ShowDelay = DefaultShowDelay
	}
	if o.HideDelay <= 0 {
		o.HideDelay = DefaultHideDelay
	}
	if o.PinDuration <= 0 {
		o.PinDuration = DefaultPinDuration
	}
	switch {
	case o.WatchdogInterval == 0:
		o.WatchdogInterval = DefaultWatchdogInterval
	case o.WatchdogInterval < 0:
		o.WatchdogInterval = 0
	}
	switch {
	case o.HideAnimation == 0:
		o.HideAnimation = DefaultHideAnimation
	case o.HideAnimation < 0:
		o.HideAnimation = 0
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	o.Clock = clock.Or(o.Clock)
}
