// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Load when no blob exists for the given
// scope and key. Callers distinguish it from I/O failures with
// errors.Is.
var ErrNotFound = errors.New("store: not found")

// Scope names a location in the store hierarchy: the community name
// first, then resource path segments, then any further subdivision
// (for example a chunk directory). Segments must be non-empty and must
// not contain path separators.
type Scope []string

// NewScope builds a scope from its segments.
func NewScope(segments ...string) Scope {
	return Scope(segments)
}

// Child returns a scope one level deeper.
func (s Scope) Child(segment string) Scope {
	child := make(Scope, len(s), len(s)+1)
	copy(child, s)
	return append(child, segment)
}

// String renders the scope for log messages.
func (s Scope) String() string {
	return strings.Join([]string(s), "/")
}

// Validate rejects scopes whose segments could escape the store root
// or collide with the temporary-file namespace.
func (s Scope) Validate() error {
	for _, segment := range s {
		if err := validateSegment(segment); err != nil {
			return fmt.Errorf("scope %q: %w", s.String(), err)
		}
	}
	return nil
}

func validateSegment(segment string) error {
	if segment == "" {
		return errors.New("empty segment")
	}
	if segment == "." || segment == ".." {
		return fmt.Errorf("segment %q is reserved", segment)
	}
	if strings.ContainsAny(segment, "/\\\x00") {
		return fmt.Errorf("segment %q contains a path separator", segment)
	}
	return nil
}

// Store persists opaque blobs keyed by scope and name. Implementations
// must be safe for concurrent use.
type Store interface {
	// Load returns the blob saved under scope/key, or ErrNotFound.
	Load(scope Scope, key string) ([]byte, error)

	// Save durably replaces the blob under scope/key. The previous
	// content, if any, is never partially visible to readers.
	Save(scope Scope, key string, data []byte) error

	// Exists reports whether a blob is saved under scope/key.
	Exists(scope Scope, key string) (bool, error)

	// List returns the keys saved directly under scope, sorted. A
	// scope that was never written to lists as empty, not as an
	// error.
	List(scope Scope) ([]string, error)

	// ListScopes returns the names of the child scopes directly
	// under scope, sorted. Like List, an unknown scope lists as
	// empty.
	ListScopes(scope Scope) ([]string, error)
}
