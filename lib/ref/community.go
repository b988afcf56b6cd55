// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxCommunityNameLength bounds community names. The name is used as a
// directory name on disk and as a URL path segment, so it must stay
// short and uniform across filesystems.
const maxCommunityNameLength = 64

// CommunityName is a validated community name. It is the community's
// lookup key in the registry, its directory name in storage, and the
// final segment of its listener address (/community/{name}/).
//
// Valid names are 1–64 characters drawn from lowercase letters, digits,
// and '-', and do not begin or end with '-'. The zero value is not
// valid; use IsZero to check.
type CommunityName struct {
	name string
}

// ParseCommunityName validates and wraps a raw community name.
func ParseCommunityName(raw string) (CommunityName, error) {
	if raw == "" {
		return CommunityName{}, fmt.Errorf("community name is empty")
	}
	if len(raw) > maxCommunityNameLength {
		return CommunityName{}, fmt.Errorf("community name %q exceeds %d characters", raw, maxCommunityNameLength)
	}
	for index := 0; index < len(raw); index++ {
		character := raw[index]
		switch {
		case character >= 'a' && character <= 'z':
		case character >= '0' && character <= '9':
		case character == '-':
			if index == 0 || index == len(raw)-1 {
				return CommunityName{}, fmt.Errorf("community name %q must not begin or end with '-'", raw)
			}
		default:
			return CommunityName{}, fmt.Errorf("community name %q contains invalid character %q", raw, string(character))
		}
	}
	return CommunityName{name: raw}, nil
}

// String returns the community name.
func (c CommunityName) String() string { return c.name }

// IsZero reports whether the name is the zero value (uninitialized).
func (c CommunityName) IsZero() bool { return c.name == "" }

// MarshalText implements encoding.TextMarshaler.
func (c CommunityName) MarshalText() ([]byte, error) {
	return []byte(c.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// name format. Empty input produces the zero value.
func (c *CommunityName) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = CommunityName{}
		return nil
	}
	parsed, err := ParseCommunityName(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
