// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// stores returns one of each Store implementation so that every test
// exercises both.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"file":   fileStore,
		"memory": NewMemoryStore(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			scope := NewScope("acme", "general")
			if err := s.Save(scope, "state", []byte("hello")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			data, err := s.Load(scope, "state")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(data) != "hello" {
				t.Errorf("Load = %q, want %q", data, "hello")
			}
		})
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(NewScope("acme"), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Load error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			scope := NewScope("acme")
			if err := s.Save(scope, "state", []byte("first")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(scope, "state", []byte("second")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			data, err := s.Load(scope, "state")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(data) != "second" {
				t.Errorf("Load = %q, want %q", data, "second")
			}
		})
	}
}

func TestExists(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			scope := NewScope("acme", "general", "chunks")
			ok, err := s.Exists(scope, "0")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if ok {
				t.Error("Exists = true before Save")
			}
			if err := s.Save(scope, "0", []byte("chunk")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			ok, err = s.Exists(scope, "0")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if !ok {
				t.Error("Exists = false after Save")
			}
		})
	}
}

func TestListSortedAndShallow(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			scope := NewScope("acme", "general")
			for _, key := range []string{"2", "0", "1"} {
				if err := s.Save(scope, key, []byte(key)); err != nil {
					t.Fatalf("Save %q: %v", key, err)
				}
			}
			// A deeper scope must not leak into the listing.
			if err := s.Save(scope.Child("nested"), "3", []byte("x")); err != nil {
				t.Fatalf("Save nested: %v", err)
			}
			keys, err := s.List(scope)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !reflect.DeepEqual(keys, []string{"0", "1", "2"}) {
				t.Errorf("List = %v, want [0 1 2]", keys)
			}
		})
	}
}

func TestListScopes(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(NewScope("beta"), "config", []byte("b")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(NewScope("alpha", "general"), "state", []byte("a")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			names, err := s.ListScopes(NewScope())
			if err != nil {
				t.Fatalf("ListScopes: %v", err)
			}
			if !reflect.DeepEqual(names, []string{"alpha", "beta"}) {
				t.Errorf("ListScopes = %v, want [alpha beta]", names)
			}

			names, err = s.ListScopes(NewScope("alpha"))
			if err != nil {
				t.Fatalf("ListScopes: %v", err)
			}
			if !reflect.DeepEqual(names, []string{"general"}) {
				t.Errorf("ListScopes(alpha) = %v, want [general]", names)
			}

			names, err = s.ListScopes(NewScope("missing"))
			if err != nil {
				t.Fatalf("ListScopes: %v", err)
			}
			if len(names) != 0 {
				t.Errorf("ListScopes(missing) = %v, want empty", names)
			}
		})
	}
}

func TestListEmptyScope(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keys, err := s.List(NewScope("never", "written"))
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(keys) != 0 {
				t.Errorf("List = %v, want empty", keys)
			}
		})
	}
}

func TestScopeValidation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			bad := []Scope{
				NewScope(""),
				NewScope(".."),
				NewScope("a/b"),
				NewScope("a\\b"),
			}
			for _, scope := range bad {
				if err := s.Save(scope, "key", nil); err == nil {
					t.Errorf("Save accepted scope %q", scope.String())
				}
			}
			if err := s.Save(NewScope("ok"), "../escape", nil); err == nil {
				t.Error("Save accepted key with traversal")
			}
		})
	}
}

func TestFileStoreLeavesNoTemporaries(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	scope := NewScope("acme")
	if err := s.Save(scope, "state", []byte("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, "acme"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	s := NewMemoryStore()
	scope := NewScope("acme")
	original := []byte("immutable")
	if err := s.Save(scope, "state", original); err != nil {
		t.Fatalf("Save: %v", err)
	}
	original[0] = 'X'
	data, err := s.Load(scope, "state")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "immutable" {
		t.Errorf("stored blob aliased the caller's slice: %q", data)
	}
	data[0] = 'Y'
	again, err := s.Load(scope, "state")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(again) != "immutable" {
		t.Errorf("loaded blob aliased the stored slice: %q", again)
	}
}
