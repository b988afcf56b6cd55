// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/concordnet/concord/lib/clock"
	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/secret"
	"github.com/concordnet/concord/lib/store"
	"github.com/concordnet/concord/protocol"
	"github.com/concordnet/concord/resource"
)

// Sender is the send side of a live connection. The gateway's
// Connection implements it; the community only ever touches this
// surface when broadcasting.
type Sender interface {
	Send(envelope protocol.Envelope) error
}

// Options carries the collaborators communities are built with.
type Options struct {
	// Store persists community and resource state. Required.
	Store store.Store

	// Registry maps resource codecs to constructors. Defaults to
	// resource.DefaultRegistry().
	Registry *resource.Registry

	// Clock supplies timestamps. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// SealRecipients are age public keys. When non-empty, the
	// community's X448 private key is age-sealed at rest instead of
	// being stored as a bare base64 blob.
	SealRecipients []string

	// SealIdentity is the age identity that unseals private keys at
	// load time. Required to load a community saved with
	// SealRecipients.
	SealIdentity *secret.Buffer
}

func (o Options) normalized() (Options, error) {
	if o.Store == nil {
		return o, errors.New("community: a store is required")
	}
	if o.Registry == nil {
		o.Registry = resource.DefaultRegistry()
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}

// Community is one hosted community: identity, membership, the
// long-term keypair used by the connection handshake, the resource
// tree, and the live-connection index.
type Community struct {
	opts    Options
	name    ref.CommunityName
	owner   ref.ID
	keypair *keyex.Keypair

	// mu guards membership, roles, and the top-level resource list.
	// It is never held across store or network I/O: dispatch and
	// persistence snapshot what they need first.
	mu        sync.RWMutex
	members   map[ref.ID][]string
	roles     map[string][]string
	resources []resource.Interactable

	// connMu guards the live-connection index separately, so
	// broadcasting never contends with tree lookups.
	connMu      sync.RWMutex
	connections map[ref.ID][]Sender
}

// New assembles a community around an existing keypair. Most callers
// want Create (fresh keypair, persisted) or Load instead.
func New(name ref.CommunityName, owner ref.ID, keypair *keyex.Keypair, opts Options) (*Community, error) {
	normalized, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if name.IsZero() {
		return nil, errors.New("community: a name is required")
	}
	if owner.IsZero() {
		return nil, errors.New("community: an owner is required")
	}
	if keypair == nil {
		return nil, errors.New("community: a keypair is required")
	}
	return &Community{
		opts:        normalized,
		name:        name,
		owner:       owner,
		keypair:     keypair,
		members:     map[ref.ID][]string{owner: {"owner"}},
		roles:       make(map[string][]string),
		connections: make(map[ref.ID][]Sender),
	}, nil
}

// Name returns the community's name.
func (c *Community) Name() ref.CommunityName { return c.name }

// Owner returns the owning user's ID.
func (c *Community) Owner() ref.ID { return c.owner }

// PublicKey returns the community's X448 public key, base64-encoded.
// Peers receive it in the handshake's challenge envelope.
func (c *Community) PublicKey() string { return c.keypair.PublicBase64() }

// Keypair exposes the community's long-term keypair for the
// handshake's Diffie-Hellman computation.
func (c *Community) Keypair() *keyex.Keypair { return c.keypair }

// Close releases the keypair's locked key material.
func (c *Community) Close() error { return c.keypair.Close() }

// AddMember adds or replaces a member with the given permissions.
func (c *Community) AddMember(userID ref.ID, permissions ...string) error {
	if userID.IsZero() {
		return errors.New("community: member ID is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[userID] = append([]string(nil), permissions...)
	return nil
}

// RemoveMember drops a member. The owner cannot be removed.
func (c *Community) RemoveMember(userID ref.ID) error {
	if userID == c.owner {
		return fmt.Errorf("community: cannot remove the owner of %q", c.name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, userID)
	return nil
}

// Permissions returns a member's permission strings and whether the
// user is a member at all.
func (c *Community) Permissions(userID ref.ID) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	permissions, ok := c.members[userID]
	if !ok {
		return nil, false
	}
	return append([]string(nil), permissions...), true
}

// Members returns the member IDs, unordered.
func (c *Community) Members() []ref.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	members := make([]ref.ID, 0, len(c.members))
	for userID := range c.members {
		members = append(members, userID)
	}
	return members
}

// SetRole defines or replaces a named role.
func (c *Community) SetRole(name string, permissions ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[name] = append([]string(nil), permissions...)
}

// Role returns a named role's permissions and whether it exists.
func (c *Community) Role(name string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	permissions, ok := c.roles[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), permissions...), true
}

// resourceDeps builds the dependency set handed to this community's
// resources.
func (c *Community) resourceDeps() resource.Deps {
	return resource.Deps{
		Store:       c.opts.Store,
		Scope:       store.NewScope(c.name.String(), "resources"),
		Broadcaster: c,
		Clock:       c.opts.Clock,
		Logger:      c.opts.Logger.With("community", c.name.String()),
	}
}

// NewCategory creates a category wired to this community.
func (c *Community) NewCategory(name string) (*resource.Category, error) {
	return resource.NewCategory(name)
}

// NewTextChannel creates a text channel wired to this community.
func (c *Community) NewTextChannel(name string) (*resource.TextChannel, error) {
	return resource.NewTextChannel(name, c.resourceDeps())
}

// NewVoiceChannel creates a voice channel wired to this community.
func (c *Community) NewVoiceChannel(name string) (*resource.VoiceChannel, error) {
	return resource.NewVoiceChannel(name, c.resourceDeps())
}

// AddResource mounts a resource at the top level of the tree. Sibling
// name collisions and resources already rooted elsewhere are rejected.
func (c *Community) AddResource(target resource.Interactable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.resources {
		if existing.Name() == target.Name() {
			return fmt.Errorf("community %q already has a resource named %q", c.name, target.Name())
		}
	}
	if err := resource.Attach(target, ref.RootPath); err != nil {
		return err
	}
	c.resources = append(c.resources, target)
	return nil
}

// RemoveResource unmounts and returns the named top-level resource.
func (c *Community) RemoveResource(name string) (resource.Interactable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.resources {
		if existing.Name() == name {
			c.resources = append(c.resources[:i], c.resources[i+1:]...)
			resource.Detach(existing)
			return existing, true
		}
	}
	return nil, false
}

// Resources returns a snapshot of the top-level resource list.
func (c *Community) Resources() []resource.Interactable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make([]resource.Interactable, len(c.resources))
	copy(snapshot, c.resources)
	return snapshot
}

// FindResource returns the named top-level resource.
func (c *Community) FindResource(name string) (resource.Interactable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, existing := range c.resources {
		if existing.Name() == name {
			return existing, true
		}
	}
	return nil, false
}

// ResourceSummary is one entry in the resource enumeration sent in
// the handshake's identification_response.
type ResourceSummary struct {
	Codec string          `json:"codec"`
	Path  string          `json:"path"`
	State json.RawMessage `json:"state"`
}

// EnumerateResources summarizes every top-level resource by name.
// Category snapshots include their subtrees, so the enumeration
// covers the whole tree.
func (c *Community) EnumerateResources() (map[string]ResourceSummary, error) {
	resources := c.Resources()
	enumeration := make(map[string]ResourceSummary, len(resources))
	for _, target := range resources {
		state, err := target.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshotting %q: %w", target.Name(), err)
		}
		enumeration[target.Name()] = ResourceSummary{
			Codec: target.Codec(),
			Path:  target.Path().String(),
			State: state,
		}
	}
	return enumeration, nil
}

// Dispatch resolves the function envelope's (path, name) address and
// invokes the target resource. Resolution works on a snapshot of the
// top-level list, so a concurrent structural change cannot invalidate
// an in-flight dispatch. Every failure returns a correlated error
// envelope; Dispatch never returns a zero Envelope.
func (c *Community) Dispatch(ctx context.Context, envelope protocol.Envelope) protocol.Envelope {
	name := envelope.FieldOr(protocol.TagName, "")
	if err := ref.ValidateResourceName(name); err != nil {
		return protocol.NewError(envelope.ID, "invalid resource name: "+err.Error())
	}
	path, err := ref.ParseResourcePath(envelope.FieldOr(protocol.TagPath, ""))
	if err != nil {
		return protocol.NewError(envelope.ID, "invalid resource path: "+err.Error())
	}

	target, err := c.resolve(path, name)
	if err != nil {
		return protocol.NewError(envelope.ID, err.Error())
	}
	return target.RunFunction(ctx, envelope)
}

// resolve walks the tree snapshot to the addressed resource.
func (c *Community) resolve(path ref.ResourcePath, name string) (resource.Interactable, error) {
	if path.IsRoot() {
		target, ok := c.FindResource(name)
		if !ok {
			return nil, fmt.Errorf("community %q has no resource named %q", c.name, name)
		}
		return target, nil
	}

	segments := path.Segments()
	top, ok := c.FindResource(segments[0])
	if !ok {
		return nil, fmt.Errorf("community %q has no resource named %q", c.name, segments[0])
	}
	category, ok := top.(*resource.Category)
	if !ok {
		return nil, fmt.Errorf("%q is not a category", segments[0])
	}
	return category.Resolve(segments[1:], name)
}

// Register adds a live connection under its authenticated user. The
// gateway only registers connections that completed the handshake.
func (c *Community) Register(userID ref.ID, conn Sender) error {
	if userID.IsZero() {
		return errors.New("community: cannot register an unidentified connection")
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.connections[userID] = append(c.connections[userID], conn)
	return nil
}

// Unregister removes one live connection. Unknown connections are a
// no-op: a connection that failed its handshake was never registered.
func (c *Community) Unregister(userID ref.ID, conn Sender) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	remaining := c.connections[userID][:0]
	for _, existing := range c.connections[userID] {
		if existing != conn {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == 0 {
		delete(c.connections, userID)
	} else {
		c.connections[userID] = remaining
	}
}

// Registered returns how many live connections a user has.
func (c *Community) Registered(userID ref.ID) int {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return len(c.connections[userID])
}

// Broadcast sends an envelope to every registered connection.
// Delivery is best-effort per recipient: one slow or broken
// subscriber never blocks or fails the rest.
func (c *Community) Broadcast(envelope protocol.Envelope) {
	c.connMu.RLock()
	recipients := make([]Sender, 0, len(c.connections))
	for _, conns := range c.connections {
		recipients = append(recipients, conns...)
	}
	c.connMu.RUnlock()

	for _, recipient := range recipients {
		if err := recipient.Send(envelope); err != nil {
			c.opts.Logger.Debug("broadcast delivery failed",
				"community", c.name.String(), "error", err)
		}
	}
}
