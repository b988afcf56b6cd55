// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/concordnet/concord/lib/codec"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/protocol"
)

// Category is a folder resource: an ordered list of child resources.
// Categories are addressing nodes, not executable resources, so
// RunFunction always returns an error envelope.
type Category struct {
	meta

	mu       sync.RWMutex
	children []Interactable
}

// NewCategory creates an empty category with a fresh ID.
func NewCategory(name string) (*Category, error) {
	identity, err := newMeta(name)
	if err != nil {
		return nil, fmt.Errorf("category name: %w", err)
	}
	return &Category{meta: identity}, nil
}

// Codec implements Interactable.
func (c *Category) Codec() string { return CodecCategory }

// childPath is the path assigned to this category's children.
func (c *Category) childPath() ref.ResourcePath {
	return c.path.Child(c.name)
}

// attach binds the category into the tree and re-paths its subtree.
func (c *Category) attach(path ref.ResourcePath) error {
	if err := c.meta.attach(path); err != nil {
		return err
	}
	c.repathChildren()
	return nil
}

func (c *Category) setPath(path ref.ResourcePath) {
	c.meta.setPath(path)
	c.repathChildren()
}

func (c *Category) repathChildren() {
	childPath := c.childPath()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, child := range c.children {
		if mountable, ok := child.(attachable); ok {
			mountable.setPath(childPath)
		}
	}
}

// Insert appends a child. It rejects a sibling name collision and a
// resource that is already rooted elsewhere in a tree.
func (c *Category) Insert(child Interactable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.children {
		if existing.Name() == child.Name() {
			return fmt.Errorf("category %q already has a child named %q", c.name, child.Name())
		}
	}
	if err := Attach(child, c.childPath()); err != nil {
		return err
	}
	c.children = append(c.children, child)
	return nil
}

// Remove detaches and returns the named child. The second return is
// false if no child has that name.
func (c *Category) Remove(name string) (Interactable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, child := range c.children {
		if child.Name() == name {
			c.children = append(c.children[:i], c.children[i+1:]...)
			Detach(child)
			return child, true
		}
	}
	return nil, false
}

// Find returns the direct child with the given name.
func (c *Category) Find(name string) (Interactable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, child := range c.children {
		if child.Name() == name {
			return child, true
		}
	}
	return nil, false
}

// Children returns a snapshot of the child list in insertion order.
func (c *Category) Children() []Interactable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make([]Interactable, len(c.children))
	copy(snapshot, c.children)
	return snapshot
}

// Resolve walks the given category segments below this category and
// returns the resource with the given leaf name at the end of the
// walk. An intermediate segment that is not a category is an error.
func (c *Category) Resolve(segments []string, name string) (Interactable, error) {
	if len(segments) == 0 {
		child, ok := c.Find(name)
		if !ok {
			return nil, fmt.Errorf("no resource named %q in category %q", name, c.name)
		}
		return child, nil
	}
	child, ok := c.Find(segments[0])
	if !ok {
		return nil, fmt.Errorf("no resource named %q in category %q", segments[0], c.name)
	}
	nested, ok := child.(*Category)
	if !ok {
		return nil, fmt.Errorf("%q is not a category", segments[0])
	}
	return nested.Resolve(segments[1:], name)
}

// childSummary is the per-child entry in a category snapshot.
type childSummary struct {
	Codec string          `json:"codec"`
	State json.RawMessage `json:"state"`
}

// Snapshot implements Interactable. It recursively summarizes the
// children, keyed by name.
func (c *Category) Snapshot() (json.RawMessage, error) {
	children := c.Children()
	summary := make(map[string]childSummary, len(children))
	for _, child := range children {
		state, err := child.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshotting %q: %w", child.Name(), err)
		}
		summary[child.Name()] = childSummary{Codec: child.Codec(), State: state}
	}
	snapshot, err := json.Marshal(struct {
		ID       ref.ID                  `json:"id"`
		Name     string                  `json:"name"`
		Children map[string]childSummary `json:"children"`
	}{ID: c.id, Name: c.name, Children: summary})
	if err != nil {
		return nil, fmt.Errorf("encoding category snapshot: %w", err)
	}
	return snapshot, nil
}

// categoryState is the persisted form. Children are persisted as
// separate records by the community, which rebuilds the tree from
// their paths, so only the category's own identity is stored here.
type categoryState struct {
	ID   ref.ID `json:"id"`
	Name string `json:"name"`
}

// MarshalState implements Interactable.
func (c *Category) MarshalState() ([]byte, error) {
	return codec.Marshal(categoryState{ID: c.id, Name: c.name})
}

// UnmarshalState implements Interactable.
func (c *Category) UnmarshalState(data []byte) error {
	var state categoryState
	if err := codec.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decoding category state: %w", err)
	}
	if err := ref.ValidateResourceName(state.Name); err != nil {
		return fmt.Errorf("persisted category name: %w", err)
	}
	if state.ID.IsZero() {
		return fmt.Errorf("persisted category %q has no ID", state.Name)
	}
	c.id = state.ID
	c.name = state.Name
	return nil
}

// RunFunction implements Interactable. Categories never execute
// functions; address one of the children instead.
func (c *Category) RunFunction(_ context.Context, call protocol.Envelope) protocol.Envelope {
	return protocol.NewError(call.ID,
		fmt.Sprintf("%q is a category and does not execute functions", c.name))
}
