package clock

import (
	"sort"
	"sync"
	"time"
)

// NewFake returns a Fake initialized to the given time. Time stands still
// until Advance is called.
func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

// Fake is a deterministic Clock for tests.
//
// Callbacks run synchronously inside Advance, in deadline order, with the
// clock's lock released, so they may schedule or cancel other callbacks.
// Do not call Advance from inside a callback.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	seq     uint64
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	seq      uint64
	interval time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

type fakeHandle struct {
	clock  *Fake
	waiter *fakeWaiter
}

func (h fakeHandle) Cancel() bool {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	if h.waiter.stopped || h.waiter.fired {
		return false
	}
	h.waiter.stopped = true
	return true
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers fn to run once the clock has advanced by d.
// A non-positive d fires on the next Advance.
func (c *Fake) After(d time.Duration, fn func()) CancelHandle {
	return c.schedule(d, 0, fn)
}

// Every registers fn to run each time the clock passes another interval.
func (c *Fake) Every(interval time.Duration, fn func()) CancelHandle {
	if interval <= 0 {
		panic("clock: non-positive interval for Every")
	}
	return c.schedule(interval, interval, fn)
}

func (c *Fake) schedule(d, interval time.Duration, fn func()) CancelHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	w := &fakeWaiter{
		deadline: c.current.Add(d),
		seq:      c.seq,
		interval: interval,
		fn:       fn,
	}
	c.waiters = append(c.waiters, w)
	return fakeHandle{clock: c, waiter: w}
}

// Advance moves the clock forward by d and runs every callback whose
// deadline falls within the new time. A periodic callback spanning several
// intervals runs once per interval.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		w := c.nextDueLocked(target)
		if w == nil {
			break
		}
		c.current = w.deadline
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
		} else {
			w.fired = true
		}
		c.mu.Unlock()
		w.fn()
		c.mu.Lock()
	}
	c.current = target
	c.compactLocked()
	c.mu.Unlock()
}

// Pending reports how many callbacks are still scheduled.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			n++
		}
	}
	return n
}

func (c *Fake) nextDueLocked(target time.Time) *fakeWaiter {
	var due []*fakeWaiter
	for _, w := range c.waiters {
		if w.stopped || w.fired || w.deadline.After(target) {
			continue
		}
		due = append(due, w)
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (c *Fake) compactLocked() {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			live = append(live, w)
		}
	}
	for i := len(live); i < len(c.waiters); i++ {
		c.waiters[i] = nil
	}
	c.waiters = live
}

var (
	_ Clock = (*Fake)(nil)
	_ Clock = (*realClock)(nil)
)
