// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for tests and ephemeral
// single-process deployments. Blobs are copied on the way in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(scope Scope, key string) ([]byte, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[scope.String()][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, scope.String(), key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save implements Store.
func (s *MemoryStore) Save(scope Scope, key string, data []byte) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := validateSegment(key); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.blobs[scope.String()]
	if !ok {
		keys = make(map[string][]byte)
		s.blobs[scope.String()] = keys
	}
	keys[key] = stored
	return nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(scope Scope, key string) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[scope.String()][key]
	return ok, nil
}

// List implements Store.
func (s *MemoryStore) List(scope Scope) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs[scope.String()]))
	for key := range s.blobs[scope.String()] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ListScopes implements Store.
func (s *MemoryStore) ListScopes(scope Scope) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	prefix := scope.String()
	if prefix != "" {
		prefix += "/"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for stored := range s.blobs {
		if !strings.HasPrefix(stored, prefix) || stored == scope.String() {
			continue
		}
		remainder := strings.TrimPrefix(stored, prefix)
		child, _, _ := strings.Cut(remainder, "/")
		// A scope with no keys of its own still lists when a deeper
		// scope under it holds data, matching directory semantics.
		if child != "" && len(s.blobs[stored]) > 0 {
			seen[child] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
