// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore persists blobs as files under a root directory. Each scope
// is a directory; each key is a file inside it. Saves are atomic:
// content lands in a temporary file in the target directory and is
// renamed over the final name, so readers see either the old blob or
// the new one, never a torn write.
type FileStore struct {
	root string
}

// NewFileStore opens a file store rooted at the given directory,
// creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("store root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the store's root directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(scope Scope, key string) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	if err := validateSegment(key); err != nil {
		return "", fmt.Errorf("key: %w", err)
	}
	parts := append([]string{s.root}, []string(scope)...)
	parts = append(parts, key)
	return filepath.Join(parts...), nil
}

// Load implements Store.
func (s *FileStore) Load(scope Scope, key string) ([]byte, error) {
	path, err := s.path(scope, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, scope.String(), key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Save implements Store.
func (s *FileStore) Save(scope Scope, key string, data []byte) error {
	path, err := s.path(scope, key)
	if err != nil {
		return err
	}
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating scope directory: %w", err)
	}

	temporary, err := os.CreateTemp(directory, "."+key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Exists implements Store.
func (s *FileStore) Exists(scope Scope, key string) (bool, error) {
	path, err := s.path(scope, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("statting %s: %w", path, err)
	}
	return true, nil
}

// List implements Store.
func (s *FileStore) List(scope Scope) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	directory := filepath.Join(append([]string{s.root}, []string(scope)...)...)
	entries, err := os.ReadDir(directory)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", directory, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Skip temporary files left by an interrupted Save.
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		keys = append(keys, entry.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// ListScopes implements Store.
func (s *FileStore) ListScopes(scope Scope) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	directory := filepath.Join(append([]string{s.root}, []string(scope)...)...)
	entries, err := os.ReadDir(directory)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", directory, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
