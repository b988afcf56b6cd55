// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/concordnet/concord/lib/clock"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/store"
	"github.com/concordnet/concord/protocol"
)

// Broadcaster fans an envelope out to every live connection in a
// community. Delivery is best-effort per recipient.
type Broadcaster interface {
	Broadcast(envelope protocol.Envelope)
}

// Deps carries the collaborators a resource needs. The community
// constructs one Deps value and hands it to the registry when
// instantiating resources.
type Deps struct {
	// Store persists resource data (chat chunk files).
	Store store.Store

	// Scope is the base storage scope for the community's resource
	// data. Each resource derives its own scope beneath it from its
	// path and name.
	Scope store.Scope

	// Broadcaster delivers update envelopes community-wide. May be
	// nil in contexts with no live connections (tests, offline
	// tooling); resources then skip broadcasting.
	Broadcaster Broadcaster

	// Clock supplies timestamps.
	Clock clock.Clock

	// Logger receives per-resource diagnostics.
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real()
	}
	return d.Clock
}

func (d Deps) broadcast(envelope protocol.Envelope) {
	if d.Broadcaster != nil {
		d.Broadcaster.Broadcast(envelope)
	}
}

// Interactable is the capability set of every addressable resource.
type Interactable interface {
	// ID is the resource's stable identity.
	ID() ref.ID

	// Codec names the resource's concrete kind in the registry.
	Codec() string

	// Name is the resource's leaf name, unique among its siblings.
	Name() string

	// Path is the ancestor chain. Empty for top-level resources.
	Path() ref.ResourcePath

	// Snapshot renders the resource's current state as JSON for
	// clients (the handshake's resource enumeration and update
	// payloads).
	Snapshot() (json.RawMessage, error)

	// MarshalState serializes the resource for persistence.
	MarshalState() ([]byte, error)

	// UnmarshalState restores a freshly constructed resource from
	// its persisted form.
	UnmarshalState(data []byte) error

	// RunFunction executes the operation named in the envelope's
	// function field and returns the reply envelope, correlated to
	// the call.
	RunFunction(ctx context.Context, call protocol.Envelope) protocol.Envelope
}

// meta holds the identity fields shared by every resource kind.
type meta struct {
	id       ref.ID
	name     string
	path     ref.ResourcePath
	attached bool
}

func newMeta(name string) (meta, error) {
	if err := ref.ValidateResourceName(name); err != nil {
		return meta{}, err
	}
	return meta{id: ref.NewID(), name: name}, nil
}

func (m *meta) ID() ref.ID             { return m.id }
func (m *meta) Name() string           { return m.name }
func (m *meta) Path() ref.ResourcePath { return m.path }

// attach binds the resource into the tree at the given path. A
// resource already rooted somewhere must be detached first.
func (m *meta) attach(path ref.ResourcePath) error {
	if m.attached {
		return fmt.Errorf("resource %q is already rooted at %q", m.name, m.path.String())
	}
	m.path = path
	m.attached = true
	return nil
}

func (m *meta) detach() {
	m.path = ref.RootPath
	m.attached = false
}

func (m *meta) setPath(path ref.ResourcePath) {
	m.path = path
}

// attachable is satisfied by every in-package resource kind. The
// variant set is closed: the tree only holds resources built by this
// package's registry. setPath exists so a category can re-path its
// whole subtree when it is itself moved.
type attachable interface {
	attach(path ref.ResourcePath) error
	detach()
	setPath(path ref.ResourcePath)
}

// Attach binds a resource into the tree at the given path. It is used
// by Category for its children and by the community for top-level
// resources.
func Attach(child Interactable, path ref.ResourcePath) error {
	mountable, ok := child.(attachable)
	if !ok {
		return fmt.Errorf("resource %q (%T) was not built by the registry", child.Name(), child)
	}
	return mountable.attach(path)
}

// Detach releases a resource from its position in the tree.
func Detach(child Interactable) {
	if mountable, ok := child.(attachable); ok {
		mountable.detach()
	}
}

// dataScope is the storage scope holding a resource's own data files,
// derived from the community base scope plus the resource's address.
func dataScope(deps Deps, path ref.ResourcePath, name string) store.Scope {
	scope := deps.Scope
	for _, segment := range path.Segments() {
		scope = scope.Child(segment)
	}
	return scope.Child(name)
}
