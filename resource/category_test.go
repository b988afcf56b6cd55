// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/concordnet/concord/protocol"
)

func TestCategoryInsertAssignsPaths(t *testing.T) {
	deps, _ := testDeps(t)
	parent, err := NewCategory("general")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	child, err := NewTextChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}
	if err := parent.Insert(child); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := child.Path().String(); got != "general" {
		t.Errorf("child path = %q, want %q", got, "general")
	}
}

func TestCategoryRejectsDuplicateName(t *testing.T) {
	deps, _ := testDeps(t)
	parent, err := NewCategory("general")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	first, err := NewTextChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}
	if err := parent.Insert(first); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := NewVoiceChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewVoiceChannel: %v", err)
	}
	if err := parent.Insert(second); err == nil {
		t.Error("Insert accepted a duplicate child name")
	}
}

func TestCategoryRejectsReinsertionElsewhere(t *testing.T) {
	deps, _ := testDeps(t)
	first, err := NewCategory("first")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	second, err := NewCategory("second")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	channel, err := NewTextChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}
	if err := first.Insert(channel); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := second.Insert(channel); err == nil {
		t.Error("Insert accepted a resource already rooted elsewhere")
	}

	// After removal the resource can be re-homed.
	if _, ok := first.Remove("chat"); !ok {
		t.Fatal("Remove did not find the child")
	}
	if err := second.Insert(channel); err != nil {
		t.Errorf("Insert after Remove: %v", err)
	}
	if got := channel.Path().String(); got != "second" {
		t.Errorf("re-homed path = %q, want %q", got, "second")
	}
}

func TestNestedCategoryPaths(t *testing.T) {
	deps, _ := testDeps(t)
	outer, err := NewCategory("outer")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	inner, err := NewCategory("inner")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	channel, err := NewTextChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}

	// Build bottom-up, then mount: the subtree must be re-pathed.
	if err := inner.Insert(channel); err != nil {
		t.Fatalf("Insert channel: %v", err)
	}
	if err := outer.Insert(inner); err != nil {
		t.Fatalf("Insert inner: %v", err)
	}

	if got := inner.Path().String(); got != "outer" {
		t.Errorf("inner path = %q, want %q", got, "outer")
	}
	if got := channel.Path().String(); got != "outer.inner" {
		t.Errorf("channel path = %q, want %q", got, "outer.inner")
	}
}

func TestCategoryResolve(t *testing.T) {
	deps, _ := testDeps(t)
	outer, err := NewCategory("outer")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	inner, err := NewCategory("inner")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	channel, err := NewTextChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}
	if err := outer.Insert(inner); err != nil {
		t.Fatalf("Insert inner: %v", err)
	}
	if err := inner.Insert(channel); err != nil {
		t.Fatalf("Insert channel: %v", err)
	}

	resolved, err := outer.Resolve([]string{"inner"}, "chat")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.ID() != channel.ID() {
		t.Errorf("Resolve returned %q, want %q", resolved.Name(), channel.Name())
	}

	if _, err := outer.Resolve([]string{"missing"}, "chat"); err == nil {
		t.Error("Resolve accepted an unknown segment")
	}
	if _, err := inner.Resolve([]string{"chat"}, "anything"); err == nil {
		t.Error("Resolve recursed through a non-category")
	}
}

func TestCategoryRunFunctionAlwaysErrors(t *testing.T) {
	category, err := NewCategory("general")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	call := protocol.New(protocol.TypeFunction).
		WithField(protocol.TagFunction, "get_messages")
	reply := category.RunFunction(context.Background(), call)
	if !reply.IsError() {
		t.Errorf("RunFunction type = %q, want error", reply.Type)
	}
	if reply.ID != call.ID {
		t.Error("error reply is not correlated to the call")
	}
}

func TestCategorySnapshotSummarizesChildren(t *testing.T) {
	deps, _ := testDeps(t)
	category, err := NewCategory("general")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	channel, err := NewTextChannel("chat", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}
	voice, err := NewVoiceChannel("hangout", deps)
	if err != nil {
		t.Fatalf("NewVoiceChannel: %v", err)
	}
	if err := category.Insert(channel); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := category.Insert(voice); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	raw, err := category.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var snapshot struct {
		Name     string                  `json:"name"`
		Children map[string]childSummary `json:"children"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snapshot.Name != "general" {
		t.Errorf("snapshot name = %q", snapshot.Name)
	}
	if got := snapshot.Children["chat"].Codec; got != CodecText {
		t.Errorf("chat codec = %q, want %q", got, CodecText)
	}
	if got := snapshot.Children["hangout"].Codec; got != CodecVoice {
		t.Errorf("hangout codec = %q, want %q", got, CodecVoice)
	}
}

func TestCategoryStateRoundTrip(t *testing.T) {
	original, err := NewCategory("general")
	if err != nil {
		t.Fatalf("NewCategory: %v", err)
	}
	state, err := original.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}
	rebuilt := &Category{}
	if err := rebuilt.UnmarshalState(state); err != nil {
		t.Fatalf("UnmarshalState: %v", err)
	}
	if rebuilt.ID() != original.ID() || rebuilt.Name() != original.Name() {
		t.Errorf("round trip changed identity: %s %q", rebuilt.ID(), rebuilt.Name())
	}
}
