// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only through
// Advance.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.armed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. AfterFunc registers a
// pending timer; Advance moves the clock and runs every timer whose
// deadline has passed, in deadline order, on the calling goroutine.
// Do not call Advance from inside a timer callback.
//
// Components usually arm their timers on a background goroutine, so a
// test that advances immediately can race the arming. WaitForTimers
// closes that gap: it blocks until the given number of timers are
// pending.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*fakeTimer
	armed   *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	callback func()
	// done is set when the timer fires or is stopped. The timer is
	// dropped from the pending list on the next Advance.
	done bool
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run when the clock advances past d from
// now. A non-positive d runs f synchronously before returning.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		fired := &fakeTimer{done: true}
		return &Timer{stop: fired.stopLocked(c)}
	}
	c.mu.Lock()
	timer := &fakeTimer{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.timers = append(c.timers, timer)
	c.armed.Broadcast()
	c.mu.Unlock()
	return &Timer{stop: timer.stopLocked(c)}
}

func (t *fakeTimer) stopLocked(c *FakeClock) func() bool {
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

// Advance moves the clock forward by d and fires every pending timer
// whose deadline is now due, earliest first. Callbacks run with the
// clock set to their own deadline, so a callback reading Now sees the
// moment it was scheduled for.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		next.done = true
		c.current = next.deadline
		callback := next.callback
		c.mu.Unlock()
		callback()
		c.mu.Lock()
	}
	c.current = target
	c.compact()
	c.mu.Unlock()
}

// nextDue returns the live timer with the earliest deadline at or
// before target, or nil. Caller holds mu.
func (c *FakeClock) nextDue(target time.Time) *fakeTimer {
	var due *fakeTimer
	for _, t := range c.timers {
		if t.done || t.deadline.After(target) {
			continue
		}
		if due == nil || t.deadline.Before(due.deadline) {
			due = t
		}
	}
	return due
}

// compact drops fired and stopped timers. Caller holds mu.
func (c *FakeClock) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	c.timers = live
}

// WaitForTimers blocks until at least n timers are pending. Stopped
// and fired timers do not count.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pending() < n {
		c.armed.Wait()
	}
}

func (c *FakeClock) pending() int {
	count := 0
	for _, t := range c.timers {
		if !t.done {
			count++
		}
	}
	return count
}
