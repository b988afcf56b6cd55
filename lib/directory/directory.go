// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/ref"
)

// ErrUnknownUser is returned by Resolve when the user is not known to
// the directory, or when the directory cannot be reached. The two
// cases are deliberately indistinguishable to callers: an outage must
// not weaken authentication.
var ErrUnknownUser = errors.New("directory: unknown user")

// Profile is the directory's record of a user.
type Profile struct {
	// UserID is the user's stable identity.
	UserID ref.ID `json:"user_id"`

	// DisplayName is a human-readable name. It carries no identity
	// semantics.
	DisplayName string `json:"display_name"`

	// PublicKey is the user's X448 public key, base64-encoded. The
	// handshake challenge is sealed against this key.
	PublicKey string `json:"public_key"`
}

// Fingerprint returns a short hex digest of the profile's public key
// for log messages.
func (p *Profile) Fingerprint() string {
	fingerprint, err := keyex.FingerprintPublicBase64(p.PublicKey)
	if err != nil {
		return "invalid"
	}
	return fingerprint
}

// Validate checks that the profile is usable for authentication.
func (p *Profile) Validate() error {
	if p.UserID.IsZero() {
		return errors.New("profile has no user ID")
	}
	if _, err := keyex.DecodePublicBase64(p.PublicKey); err != nil {
		return fmt.Errorf("profile public key: %w", err)
	}
	return nil
}

// Directory resolves user IDs to profiles. Implementations must be
// safe for concurrent use.
type Directory interface {
	// Resolve returns the profile for the given user, or an error
	// wrapping ErrUnknownUser.
	Resolve(ctx context.Context, userID ref.ID) (*Profile, error)
}

// MemoryDirectory is an in-memory Directory for tests and
// single-process deployments where the operator provisions users
// directly.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[ref.ID]*Profile
}

// NewMemoryDirectory returns an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[ref.ID]*Profile)}
}

// Add registers or replaces a profile.
func (d *MemoryDirectory) Add(profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	stored := *profile
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.UserID] = &stored
	return nil
}

// Remove deletes a profile. Removing an absent user is a no-op.
func (d *MemoryDirectory) Remove(userID ref.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.profiles, userID)
}

// Resolve implements Directory.
func (d *MemoryDirectory) Resolve(_ context.Context, userID ref.ID) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profile, ok := d.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	out := *profile
	return &out, nil
}
