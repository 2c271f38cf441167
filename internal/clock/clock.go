// Package clock schedules the one-shot and periodic callbacks that drive
// invitation expiry and match ticks.
//
// Production code uses Real. Tests use Fake, which only moves when
// Advance is called and fires due callbacks synchronously in deadline
// order, so timer-vs-action races can be reproduced step by step.
package clock

import "time"

// Clock schedules callbacks against a time source.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After runs fn once, d from now, unless cancelled first.
	After(d time.Duration, fn func()) CancelHandle
	// Every runs fn repeatedly at the given interval until cancelled.
	// Invocations for one handle never overlap.
	Every(interval time.Duration, fn func()) CancelHandle
}

// CancelHandle stops a scheduled callback.
type CancelHandle interface {
	// Cancel prevents every invocation that has not started yet.
	// It reports whether this call did the stopping; repeated calls return false.
	// Cancel may be called from inside the callback it stops.
	Cancel() bool
}
