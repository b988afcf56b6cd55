// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/sealed"
)

func TestGenerateUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.key")
	if err := generateUser(path); err != nil {
		t.Fatalf("generateUser: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("key file mode = %o, want 600", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading key file: %v", err)
	}
	keypair, err := keyex.FromPrivateBase64(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("written key does not round trip: %v", err)
	}
	keypair.Close()
}

func TestGenerateAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sealing.key")
	if err := generateAge(path); err != nil {
		t.Fatalf("generateAge: %v", err)
	}

	identity, err := sealed.LoadIdentity(path)
	if err != nil {
		t.Fatalf("written identity does not load: %v", err)
	}
	identity.Close()
}

func TestWritePrivateRefusesClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.key")
	if err := os.WriteFile(path, []byte("precious"), 0o600); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	if err := writePrivate(path, "replacement"); err == nil {
		t.Fatal("expected clobber refusal")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "precious" {
		t.Error("existing key was overwritten")
	}
}
