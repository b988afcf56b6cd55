// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// PathSeparator joins the segments of a resource path on the wire and
// in persisted configuration.
const PathSeparator = "."

// ResourcePath is the ancestor chain addressing a resource inside a
// community's tree. The empty path addresses the top level: a resource
// with an empty path is looked up directly among the community's root
// resources. A non-empty path names the chain of categories to recurse
// through, joined by PathSeparator (e.g. "general.offtopic").
//
// Path segments are resource names: non-empty, and free of the
// separator and filesystem path characters, since resource paths also
// scope persisted storage.
type ResourcePath struct {
	path string
}

// RootPath is the empty path addressing top-level resources.
var RootPath = ResourcePath{}

// ParseResourcePath validates and wraps a raw path string. The empty
// string is the root path.
func ParseResourcePath(raw string) (ResourcePath, error) {
	if raw == "" {
		return ResourcePath{}, nil
	}
	for _, segment := range strings.Split(raw, PathSeparator) {
		if err := ValidateResourceName(segment); err != nil {
			return ResourcePath{}, fmt.Errorf("invalid path %q: %w", raw, err)
		}
	}
	return ResourcePath{path: raw}, nil
}

// ValidateResourceName checks a single resource name (a path segment or
// a leaf name). Names must be non-empty and must not contain the path
// separator, '/', '\', or NUL, because they become storage directory
// names.
func ValidateResourceName(name string) error {
	if name == "" {
		return fmt.Errorf("resource name is empty")
	}
	if strings.ContainsAny(name, PathSeparator+`/\`+"\x00") {
		return fmt.Errorf("resource name %q contains a reserved character", name)
	}
	return nil
}

// String returns the path in wire form ("" for the root path).
func (p ResourcePath) String() string { return p.path }

// IsRoot reports whether the path is empty (top-level addressing).
func (p ResourcePath) IsRoot() bool { return p.path == "" }

// Segments returns the path split into its category names, or nil for
// the root path.
func (p ResourcePath) Segments() []string {
	if p.path == "" {
		return nil
	}
	return strings.Split(p.path, PathSeparator)
}

// Child returns the path extended by one segment. Panics if the
// segment is not a valid resource name; callers validate names at
// construction time, so an invalid segment here is a programming error.
func (p ResourcePath) Child(segment string) ResourcePath {
	if err := ValidateResourceName(segment); err != nil {
		panic("ref: invalid path segment: " + err.Error())
	}
	if p.path == "" {
		return ResourcePath{path: segment}
	}
	return ResourcePath{path: p.path + PathSeparator + segment}
}

// MarshalText implements encoding.TextMarshaler.
func (p ResourcePath) MarshalText() ([]byte, error) {
	return []byte(p.path), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ResourcePath) UnmarshalText(data []byte) error {
	parsed, err := ParseResourcePath(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
