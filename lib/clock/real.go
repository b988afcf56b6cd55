// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Real returns the wall clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stop: timer.Stop}
}
