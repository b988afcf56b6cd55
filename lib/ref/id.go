// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit identifier for users, resources, and envelopes. The
// canonical text form is the UUID string representation. The zero value
// is Nobody, the sentinel "no user" identifier; use IsZero to check.
//
// ID is an immutable value type and is comparable, so it can be used
// directly as a map key.
type ID struct {
	value uuid.UUID
}

// Nobody is the sentinel "no user" identifier. An identification
// envelope that omits the user field resolves to Nobody, which no
// directory will ever know.
var Nobody = ID{}

// NewID returns a freshly generated random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// ParseID validates and wraps a canonical ID string. An empty string
// parses to the zero ID (absent identifier on the wire).
func ParseID(raw string) (ID, error) {
	if raw == "" {
		return ID{}, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ID{}, fmt.Errorf("invalid identifier %q: %w", raw, err)
	}
	return ID{value: parsed}, nil
}

// String returns the canonical text form, or "" for the zero ID.
func (i ID) String() string {
	if i.value == (uuid.UUID{}) {
		return ""
	}
	return i.value.String()
}

// IsZero reports whether the ID is the zero value (no identifier).
func (i ID) IsZero() bool { return i.value == (uuid.UUID{}) }

// MarshalText implements encoding.TextMarshaler. The zero ID marshals
// to the empty string, matching the wire convention that absent
// optional identifiers are encoded as "".
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero ID.
func (i *ID) UnmarshalText(data []byte) error {
	parsed, err := ParseID(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler for compact
// persisted forms. The zero ID marshals to 16 zero bytes.
func (i ID) MarshalBinary() ([]byte, error) {
	bytes := i.value
	return bytes[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (i *ID) UnmarshalBinary(data []byte) error {
	if len(data) != 16 {
		return fmt.Errorf("identifier must be 16 bytes, got %d", len(data))
	}
	copy(i.value[:], data)
	return nil
}
