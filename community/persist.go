// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"errors"
	"fmt"
	"sort"

	"github.com/concordnet/concord/lib/codec"
	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/sealed"
	"github.com/concordnet/concord/lib/store"
	"github.com/concordnet/concord/resource"
)

// Storage keys within a community's scope.
const (
	keyConfig    = "community"
	keyResources = "resources"
)

// communityRecord is the persisted config: identity, membership, and
// the keypair. The private key is never stored in the clear: it is an
// opaque base64 blob, or an age ciphertext when sealing is configured.
type communityRecord struct {
	Name       string              `json:"name"`
	Owner      ref.ID              `json:"owner"`
	Members    map[string][]string `json:"members"`
	Roles      map[string][]string `json:"roles"`
	PublicKey  string              `json:"public_key"`
	PrivateKey string              `json:"private_key"`
	Sealed     bool                `json:"sealed"`
}

// resourceRecord is one node of the persisted resource tree. Records
// are flat; the tree is rebuilt from the paths at load time.
type resourceRecord struct {
	Codec string `json:"codec"`
	Path  string `json:"path"`
	State []byte `json:"state"`
}

func (c *Community) scope() store.Scope {
	return store.NewScope(c.name.String())
}

// Create builds a community with a fresh keypair and persists it.
func Create(name ref.CommunityName, owner ref.ID, opts Options) (*Community, error) {
	keypair, err := keyex.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating keypair for %q: %w", name, err)
	}
	created, err := New(name, owner, keypair, opts)
	if err != nil {
		keypair.Close()
		return nil, err
	}
	if err := created.Save(); err != nil {
		keypair.Close()
		return nil, err
	}
	return created, nil
}

// Save persists the community's config, membership, and resource
// tree. State is snapshotted under the read lock and written outside
// it.
func (c *Community) Save() error {
	c.mu.RLock()
	record := communityRecord{
		Name:      c.name.String(),
		Owner:     c.owner,
		Members:   make(map[string][]string, len(c.members)),
		Roles:     make(map[string][]string, len(c.roles)),
		PublicKey: c.keypair.PublicBase64(),
	}
	for userID, permissions := range c.members {
		record.Members[userID.String()] = append([]string(nil), permissions...)
	}
	for role, permissions := range c.roles {
		record.Roles[role] = append([]string(nil), permissions...)
	}
	resources := make([]resource.Interactable, len(c.resources))
	copy(resources, c.resources)
	c.mu.RUnlock()

	privateKey := c.keypair.PrivateBase64()
	if len(c.opts.SealRecipients) > 0 {
		ciphertext, err := sealed.Encrypt([]byte(privateKey), c.opts.SealRecipients)
		if err != nil {
			return fmt.Errorf("sealing private key for %q: %w", c.name, err)
		}
		record.PrivateKey = ciphertext
		record.Sealed = true
	} else {
		record.PrivateKey = privateKey
	}

	records, err := collectRecords(resources)
	if err != nil {
		return fmt.Errorf("serializing resources of %q: %w", c.name, err)
	}

	encodedConfig, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding config of %q: %w", c.name, err)
	}
	encodedResources, err := codec.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding resources of %q: %w", c.name, err)
	}

	if err := c.opts.Store.Save(c.scope(), keyConfig, encodedConfig); err != nil {
		return fmt.Errorf("saving config of %q: %w", c.name, err)
	}
	if err := c.opts.Store.Save(c.scope(), keyResources, encodedResources); err != nil {
		return fmt.Errorf("saving resources of %q: %w", c.name, err)
	}
	return nil
}

// collectRecords flattens the tree into persistable records, parents
// before children.
func collectRecords(resources []resource.Interactable) ([]resourceRecord, error) {
	var records []resourceRecord
	var walk func(target resource.Interactable) error
	walk = func(target resource.Interactable) error {
		state, err := target.MarshalState()
		if err != nil {
			return fmt.Errorf("serializing %q: %w", target.Name(), err)
		}
		records = append(records, resourceRecord{
			Codec: target.Codec(),
			Path:  target.Path().String(),
			State: state,
		})
		if category, ok := target.(*resource.Category); ok {
			for _, child := range category.Children() {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, target := range resources {
		if err := walk(target); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Load reconstructs a persisted community. A missing keypair, an
// unsealable keypair, or a record with an unregistered codec fails
// this community's load; the caller decides whether that is fatal.
func Load(name ref.CommunityName, opts Options) (*Community, error) {
	normalized, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	scope := store.NewScope(name.String())
	encodedConfig, err := normalized.Store.Load(scope, keyConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config of %q: %w", name, err)
	}
	var record communityRecord
	if err := codec.Unmarshal(encodedConfig, &record); err != nil {
		return nil, fmt.Errorf("decoding config of %q: %w", name, err)
	}
	if record.PrivateKey == "" {
		return nil, fmt.Errorf("community %q has no keypair material", name)
	}

	privateKey := record.PrivateKey
	if record.Sealed {
		if normalized.SealIdentity == nil {
			return nil, fmt.Errorf("community %q has a sealed keypair and no identity is configured", name)
		}
		unsealed, err := sealed.Decrypt(record.PrivateKey, normalized.SealIdentity)
		if err != nil {
			return nil, fmt.Errorf("unsealing keypair of %q: %w", name, err)
		}
		privateKey = unsealed.String()
		unsealed.Close()
	}
	keypair, err := keyex.FromPrivateBase64(privateKey)
	if err != nil {
		return nil, fmt.Errorf("keypair of %q: %w", name, err)
	}

	loaded, err := New(name, record.Owner, keypair, normalized)
	if err != nil {
		keypair.Close()
		return nil, err
	}
	loaded.members = make(map[ref.ID][]string, len(record.Members))
	for rawID, permissions := range record.Members {
		userID, err := ref.ParseID(rawID)
		if err != nil || userID.IsZero() {
			keypair.Close()
			return nil, fmt.Errorf("community %q has a malformed member ID %q", name, rawID)
		}
		loaded.members[userID] = permissions
	}
	for role, permissions := range record.Roles {
		loaded.roles[role] = permissions
	}

	if err := loaded.loadResources(); err != nil {
		keypair.Close()
		return nil, err
	}
	return loaded, nil
}

// loadResources rebuilds the resource tree from the flat record list.
func (c *Community) loadResources() error {
	encoded, err := c.opts.Store.Load(c.scope(), keyResources)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading resources of %q: %w", c.name, err)
	}
	var records []resourceRecord
	if err := codec.Unmarshal(encoded, &records); err != nil {
		return fmt.Errorf("decoding resources of %q: %w", c.name, err)
	}

	// Parents first: insertion requires the ancestor categories to
	// already be mounted.
	sort.SliceStable(records, func(i, j int) bool {
		return pathDepth(records[i].Path) < pathDepth(records[j].Path)
	})

	deps := c.resourceDeps()
	for _, record := range records {
		built, err := c.opts.Registry.Construct(record.Codec, deps)
		if err != nil {
			return fmt.Errorf("community %q: %w", c.name, err)
		}
		if err := built.UnmarshalState(record.State); err != nil {
			return fmt.Errorf("community %q: %w", c.name, err)
		}

		path, err := ref.ParseResourcePath(record.Path)
		if err != nil {
			return fmt.Errorf("community %q has a resource with an invalid path: %w", c.name, err)
		}
		if path.IsRoot() {
			if err := c.AddResource(built); err != nil {
				return err
			}
			continue
		}
		parent, err := c.parentCategory(path)
		if err != nil {
			return fmt.Errorf("community %q: %w", c.name, err)
		}
		if err := parent.Insert(built); err != nil {
			return fmt.Errorf("community %q: %w", c.name, err)
		}
	}
	return nil
}

// parentCategory resolves the category a persisted path points into.
func (c *Community) parentCategory(path ref.ResourcePath) (*resource.Category, error) {
	segments := path.Segments()
	top, ok := c.FindResource(segments[0])
	if !ok {
		return nil, fmt.Errorf("no resource named %q", segments[0])
	}
	category, ok := top.(*resource.Category)
	if !ok {
		return nil, fmt.Errorf("%q is not a category", segments[0])
	}
	for _, segment := range segments[1:] {
		child, ok := category.Find(segment)
		if !ok {
			return nil, fmt.Errorf("no resource named %q in category %q", segment, category.Name())
		}
		category, ok = child.(*resource.Category)
		if !ok {
			return nil, fmt.Errorf("%q is not a category", segment)
		}
	}
	return category, nil
}

func pathDepth(path string) int {
	parsed, err := ref.ParseResourcePath(path)
	if err != nil {
		return 0
	}
	return len(parsed.Segments())
}
