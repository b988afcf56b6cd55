// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data:
// community private keys, Diffie-Hellman outputs, and derived session
// keys.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, guaranteeing secret material does not persist after release.
//
// Access via [Buffer.Bytes] (slice into the mmap region) or
// [Buffer.String] (heap copy for API boundaries). [Buffer.Equal] uses
// constant-time comparison. After Close, any access panics. Close is
// idempotent.
//
// Depends only on golang.org/x/sys/unix. Imported by lib/keyex for key
// material and by lib/sealed for at-rest key protection.
package secret
