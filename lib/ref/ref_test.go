// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestIDRoundTrip(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID(%q): %v", id.String(), err)
	}
	if parsed != id {
		t.Fatalf("round trip changed ID: %v != %v", parsed, id)
	}
}

func TestIDZeroValue(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Fatal("zero ID should report IsZero")
	}
	if id.String() != "" {
		t.Fatalf("zero ID should render empty, got %q", id.String())
	}
	if id != Nobody {
		t.Fatal("zero ID should equal Nobody")
	}

	parsed, err := ParseID("")
	if err != nil {
		t.Fatalf("ParseID(\"\"): %v", err)
	}
	if !parsed.IsZero() {
		t.Fatal("empty string should parse to the zero ID")
	}
}

func TestIDParseRejectsGarbage(t *testing.T) {
	if _, err := ParseID("not-an-identifier"); err == nil {
		t.Fatal("expected error for malformed identifier")
	}
}

func TestIDJSON(t *testing.T) {
	type wrapper struct {
		User ID `json:"user"`
	}
	id := NewID()
	encoded, err := json.Marshal(wrapper{User: id})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded wrapper
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.User != id {
		t.Fatalf("JSON round trip changed ID: %v != %v", decoded.User, id)
	}
}

func TestCommunityName(t *testing.T) {
	valid := []string{"alpha", "a", "my-community", "room42"}
	for _, name := range valid {
		if _, err := ParseCommunityName(name); err != nil {
			t.Errorf("ParseCommunityName(%q): unexpected error %v", name, err)
		}
	}

	invalid := []string{"", "Alpha", "has space", "dot.name", "slash/name", "-leading", "trailing-", "über"}
	for _, name := range invalid {
		if _, err := ParseCommunityName(name); err == nil {
			t.Errorf("ParseCommunityName(%q): expected error", name)
		}
	}
}

func TestResourcePath(t *testing.T) {
	root, err := ParseResourcePath("")
	if err != nil {
		t.Fatalf("root path: %v", err)
	}
	if !root.IsRoot() {
		t.Fatal("empty path should be root")
	}
	if got := root.Segments(); got != nil {
		t.Fatalf("root path segments should be nil, got %v", got)
	}

	nested, err := ParseResourcePath("general.offtopic")
	if err != nil {
		t.Fatalf("nested path: %v", err)
	}
	segments := nested.Segments()
	if len(segments) != 2 || segments[0] != "general" || segments[1] != "offtopic" {
		t.Fatalf("unexpected segments: %v", segments)
	}

	if _, err := ParseResourcePath("general..offtopic"); err == nil {
		t.Fatal("empty segment should be rejected")
	}
	if _, err := ParseResourcePath("general/evil"); err == nil {
		t.Fatal("slash in segment should be rejected")
	}
}

func TestResourcePathChild(t *testing.T) {
	path := RootPath.Child("general").Child("offtopic")
	if path.String() != "general.offtopic" {
		t.Fatalf("unexpected path: %q", path.String())
	}
}
