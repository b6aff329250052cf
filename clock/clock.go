// Package clock abstracts the time source and deferred actions used by the
// cache, the request scheduler and the presenter, so that tests can drive
// every debounce and pacing delay deterministically with Fake.
package clock

import "time"

// Timer is a cancellable deferred action created by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the action from firing. It reports whether the call
	// stopped the timer; false means it already fired or was stopped.
	Stop() bool
}

// Clock provides the current time and deferred actions.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock backed by package time.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Or returns c, or Real when c is nil.
func Or(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}

var _ Clock = Real{}
