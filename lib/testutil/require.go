// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel assertions shared by Concord test
// suites. Gateway tests spend most of their time waiting on frames and
// teardown signals; these helpers put a wall-clock bound on every such
// wait so a broken connection fails the test instead of hanging it.
package testutil

import "time"

// TB is the subset of testing.TB the helpers need. Declared here so
// the helpers stay usable from both tests and benchmarks.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout. The what argument names the wait in the
// failure message.
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while %s", what)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("gave up after %v while %s", timeout, what)
	}
	panic("unreachable")
}

// RequireSend delivers v on ch, failing the test if no receiver takes
// it within timeout.
func RequireSend[T any](t TB, ch chan<- T, v T, timeout time.Duration, what string) {
	t.Helper()
	select {
	case ch <- v:
	case <-time.After(timeout):
		t.Fatalf("gave up after %v while %s", timeout, what)
	}
}

// RequireClosed waits for ch to close or yield a value. Teardown
// signals close their channel, so either outcome counts.
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("gave up after %v while %s", timeout, what)
	}
}
