package clock

import (
	"sync/atomic"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Real returns a Clock backed by the wall clock.
func Real() Clock {
	return &realClock{base: bclock.New()}
}

type realClock struct {
	base bclock.Clock
}

func (c *realClock) Now() time.Time {
	return c.base.Now()
}

const (
	timerPending int32 = iota
	timerFired
	timerCancelled
)

type timerHandle struct {
	state atomic.Int32
	timer *bclock.Timer
}

func (h *timerHandle) Cancel() bool {
	if !h.state.CompareAndSwap(timerPending, timerCancelled) {
		return false
	}
	h.timer.Stop()
	return true
}

func (c *realClock) After(d time.Duration, fn func()) CancelHandle {
	h := &timerHandle{}
	h.timer = c.base.AfterFunc(d, func() {
		if h.state.CompareAndSwap(timerPending, timerFired) {
			fn()
		}
	})
	return h
}

type tickerHandle struct {
	stopped atomic.Bool
	done    chan struct{}
	ticker  *bclock.Ticker
}

func (h *tickerHandle) Cancel() bool {
	if !h.stopped.CompareAndSwap(false, true) {
		return false
	}
	h.ticker.Stop()
	close(h.done)
	return true
}

func (c *realClock) Every(interval time.Duration, fn func()) CancelHandle {
	h := &tickerHandle{
		done:   make(chan struct{}),
		ticker: c.base.Ticker(interval),
	}
	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-h.ticker.C:
				if h.stopped.Load() {
					return
				}
				fn()
			}
		}
	}()
	return h
}
