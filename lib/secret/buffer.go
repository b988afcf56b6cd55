// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close. The backing
// memory is allocated via mmap outside the Go heap.
//
// A Buffer must not be copied after creation. Use Close to release the
// memory when the secret is no longer needed. After Close, any access
// to the buffer's contents panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled secret buffer of the given size. The
// buffer is backed by an anonymous mmap region that is:
//   - Locked into physical RAM (mlock), preventing swap
//   - Excluded from core dumps (MADV_DONTDUMP)
//   - Outside the Go heap, invisible to the garbage collector
//
// The caller must call Close when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{
		data:   data,
		length: size,
	}, nil
}

// NewFromBytes creates a secret buffer from existing data. The source
// bytes are copied into the protected region and then zeroed in place,
// so the caller's original slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, source)
	Zero(source)

	return buffer, nil
}

// Bytes returns the secret data. The returned slice points directly
// into the mmap region; do not hold references to it beyond the
// lifetime of the Buffer. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return b.data[:b.length]
}

// String returns the secret data as a string. The returned string is
// backed by a heap-allocated copy (Go strings are immutable and must
// live on the heap), so this should only be used at API boundaries
// that require string arguments. Prefer Bytes when possible.
//
// Panics if the buffer has been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return string(b.data[:b.length])
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

// Equal compares the buffer's contents to other in constant time.
// Returns false for length mismatches without leaking where the
// difference is. Panics if the buffer has been closed.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	if len(other) != b.length {
		return false
	}
	return subtle.ConstantTimeCompare(b.data[:b.length], other) == 1
}

// Close zeros the buffer contents, unlocks and unmaps the memory.
// After Close, any access to the buffer's contents panics. Close is
// idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	// Unlock and unmap. The memory is released when the process exits
	// regardless, so only the first error is reported.
	var firstError error
	if err := unix.Munlock(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}

	b.data = nil
	return firstError
}

// Zero overwrites a byte slice with zeros. Use this on heap copies of
// secret material as soon as they are no longer needed.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
