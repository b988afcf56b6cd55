// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock injects time into code that stamps messages or arms
// deadlines. Connections arm their handshake deadline through a Clock,
// and text channels stamp messages with one, so tests can drive both
// without sleeping: hand the component a FakeClock and call Advance.
package clock

import "time"

// Clock supplies the current time and one-shot deadline timers. The
// surface is deliberately small; grow it only when a caller needs
// more than a timestamp or a deadline.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc arms a timer that calls f once d has elapsed. Stop
	// the returned Timer to cancel the call. A non-positive d fires
	// immediately.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the timer. It reports false when the callback already
// ran or the timer was stopped before.
func (t *Timer) Stop() bool { return t.stop() }
