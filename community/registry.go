// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/store"
)

// Registry is the process-wide lifecycle map of loaded communities.
type Registry struct {
	opts Options

	mu          sync.RWMutex
	communities map[ref.CommunityName]*Community

	// reserved names are mid-creation: the keypair generation and
	// first save happen outside the lock, so the name is claimed
	// before the I/O starts and released when creation settles.
	reserved map[ref.CommunityName]bool
}

// NewRegistry builds an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	normalized, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	return &Registry{
		opts:        normalized,
		communities: make(map[ref.CommunityName]*Community),
		reserved:    make(map[ref.CommunityName]bool),
	}, nil
}

// reserve claims a name for creation. It fails if the name is loaded
// or another creation is in flight.
func (r *Registry) reserve(name ref.CommunityName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.communities[name]; exists {
		return fmt.Errorf("community %q already exists", name)
	}
	if r.reserved[name] {
		return fmt.Errorf("community %q is being created", name)
	}
	r.reserved[name] = true
	return nil
}

// Create makes a new persisted community and adds it to the registry.
// The name is reserved under the lock; keypair generation and the
// initial save run without it.
func (r *Registry) Create(name ref.CommunityName, owner ref.ID) (*Community, error) {
	if err := r.reserve(name); err != nil {
		return nil, err
	}

	created, err := Create(name, owner, r.opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, name)
	if err != nil {
		return nil, err
	}
	r.communities[name] = created
	return created, nil
}

// Add registers an already-built community.
func (r *Registry) Add(c *Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.communities[c.Name()]; exists {
		return fmt.Errorf("community %q already exists", c.Name())
	}
	if r.reserved[c.Name()] {
		return fmt.Errorf("community %q is being created", c.Name())
	}
	r.communities[c.Name()] = c
	return nil
}

// Get looks up a loaded community by name.
func (r *Registry) Get(name ref.CommunityName) (*Community, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.communities[name]
	return c, ok
}

// Remove drops a community from the registry. Its persisted state is
// left in the store.
func (r *Registry) Remove(name ref.CommunityName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.communities[name]
	if !ok {
		return false
	}
	delete(r.communities, name)
	c.Close()
	return true
}

// Names returns the loaded community names, sorted.
func (r *Registry) Names() []ref.CommunityName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]ref.CommunityName, 0, len(r.communities))
	for name := range r.communities {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}

// LoadAll loads every persisted community from the store. A community
// that fails to load (missing keypair, unregistered codec, corrupt
// record) is logged and skipped; the rest keep serving. Only a
// failure to enumerate the store at all is returned as an error.
func (r *Registry) LoadAll() error {
	names, err := r.opts.Store.ListScopes(store.NewScope())
	if err != nil {
		return fmt.Errorf("listing communities: %w", err)
	}
	for _, raw := range names {
		name, err := ref.ParseCommunityName(raw)
		if err != nil {
			r.opts.Logger.Warn("skipping storage entry with an invalid community name",
				"name", raw, "error", err)
			continue
		}
		loaded, err := Load(name, r.opts)
		if err != nil {
			r.opts.Logger.Error("community failed to load",
				"community", raw, "error", err)
			continue
		}
		if err := r.Add(loaded); err != nil {
			loaded.Close()
			r.opts.Logger.Error("community failed to register",
				"community", raw, "error", err)
			continue
		}
		r.opts.Logger.Info("community loaded",
			"community", raw, "resources", len(loaded.Resources()))
	}
	return nil
}

// SaveAll persists every loaded community, continuing past individual
// failures and returning them joined.
func (r *Registry) SaveAll() error {
	r.mu.RLock()
	communities := make([]*Community, 0, len(r.communities))
	for _, c := range r.communities {
		communities = append(communities, c)
	}
	r.mu.RUnlock()

	var errs []error
	for _, c := range communities {
		if err := c.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseAll releases every community's key material. Called on
// shutdown after SaveAll.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, c := range r.communities {
		c.Close()
		delete(r.communities, name)
	}
}
