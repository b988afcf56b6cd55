// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/ref"
)

func testProfile(t *testing.T) *Profile {
	t.Helper()
	keypair, err := keyex.Generate()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	t.Cleanup(func() { keypair.Close() })
	return &Profile{
		UserID:      ref.NewID(),
		DisplayName: "Test User",
		PublicKey:   keypair.PublicBase64(),
	}
}

func TestMemoryDirectoryResolve(t *testing.T) {
	d := NewMemoryDirectory()
	profile := testProfile(t)
	if err := d.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}

	resolved, err := d.Resolve(context.Background(), profile.UserID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.PublicKey != profile.PublicKey {
		t.Errorf("Resolve public key = %q, want %q", resolved.PublicKey, profile.PublicKey)
	}

	_, err = d.Resolve(context.Background(), ref.NewID())
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Resolve unknown user error = %v, want ErrUnknownUser", err)
	}
}

func TestMemoryDirectoryRejectsInvalidProfile(t *testing.T) {
	d := NewMemoryDirectory()
	if err := d.Add(&Profile{UserID: ref.NewID(), PublicKey: "not-a-key"}); err == nil {
		t.Error("Add accepted a profile with a malformed public key")
	}
	if err := d.Add(&Profile{PublicKey: testProfile(t).PublicKey}); err == nil {
		t.Error("Add accepted a profile with a zero user ID")
	}
}

func TestMemoryDirectoryRemove(t *testing.T) {
	d := NewMemoryDirectory()
	profile := testProfile(t)
	if err := d.Add(profile); err != nil {
		t.Fatalf("Add: %v", err)
	}
	d.Remove(profile.UserID)
	if _, err := d.Resolve(context.Background(), profile.UserID); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Resolve after Remove error = %v, want ErrUnknownUser", err)
	}
}

func TestHTTPDirectoryResolve(t *testing.T) {
	profile := testProfile(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/"+profile.UserID.String() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(profile)
	}))
	defer server.Close()

	d, err := NewHTTPDirectory(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPDirectory: %v", err)
	}

	resolved, err := d.Resolve(context.Background(), profile.UserID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.UserID != profile.UserID {
		t.Errorf("Resolve user ID = %s, want %s", resolved.UserID, profile.UserID)
	}
	if resolved.PublicKey != profile.PublicKey {
		t.Errorf("Resolve public key = %q, want %q", resolved.PublicKey, profile.PublicKey)
	}

	if _, err := d.Resolve(context.Background(), ref.NewID()); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Resolve 404 error = %v, want ErrUnknownUser", err)
	}
}

func TestHTTPDirectoryFailsClosed(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		d, err := NewHTTPDirectory("http://127.0.0.1:1")
		if err != nil {
			t.Fatalf("NewHTTPDirectory: %v", err)
		}
		if _, err := d.Resolve(context.Background(), ref.NewID()); !errors.Is(err, ErrUnknownUser) {
			t.Errorf("Resolve error = %v, want ErrUnknownUser", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()
		d, err := NewHTTPDirectory(server.URL)
		if err != nil {
			t.Fatalf("NewHTTPDirectory: %v", err)
		}
		if _, err := d.Resolve(context.Background(), ref.NewID()); !errors.Is(err, ErrUnknownUser) {
			t.Errorf("Resolve error = %v, want ErrUnknownUser", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer server.Close()
		d, err := NewHTTPDirectory(server.URL)
		if err != nil {
			t.Fatalf("NewHTTPDirectory: %v", err)
		}
		if _, err := d.Resolve(context.Background(), ref.NewID()); !errors.Is(err, ErrUnknownUser) {
			t.Errorf("Resolve error = %v, want ErrUnknownUser", err)
		}
	})

	t.Run("mismatched profile", func(t *testing.T) {
		impostor := testProfile(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(impostor)
		}))
		defer server.Close()
		d, err := NewHTTPDirectory(server.URL)
		if err != nil {
			t.Fatalf("NewHTTPDirectory: %v", err)
		}
		if _, err := d.Resolve(context.Background(), ref.NewID()); !errors.Is(err, ErrUnknownUser) {
			t.Errorf("Resolve error = %v, want ErrUnknownUser", err)
		}
	})
}

func TestNewHTTPDirectoryRejectsBadURL(t *testing.T) {
	if _, err := NewHTTPDirectory("ftp://example.com"); err == nil {
		t.Error("NewHTTPDirectory accepted an ftp URL")
	}
}
