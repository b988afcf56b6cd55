// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"errors"
	"fmt"
	"sync"
)

// Codec names for the built-in resource kinds.
const (
	CodecCategory = "category"
	CodecText     = "text"
	CodecVoice    = "voice"
)

// ErrUnknownCodec is returned by Construct for a codec no factory was
// registered under.
var ErrUnknownCodec = errors.New("resource: unknown codec")

// Factory builds an empty resource of one kind, ready for
// UnmarshalState.
type Factory func(deps Deps) Interactable

// Registry maps codec names to factories. It is the single source of
// truth for which resource kinds exist; persisted-resource loading
// goes through Construct to get the right concrete type before the
// state is populated. Construct a Registry explicitly and pass it
// down; there is no package-global instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in codecs
// registered: category, text, voice.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(CodecCategory, func(deps Deps) Interactable { return &Category{} })
	registry.Register(CodecText, func(deps Deps) Interactable { return &TextChannel{deps: deps} })
	registry.Register(CodecVoice, func(deps Deps) Interactable { return &VoiceChannel{deps: deps} })
	return registry
}

// Register adds or replaces the factory for a codec.
func (r *Registry) Register(codec string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[codec] = factory
}

// Codecs returns the registered codec names, unordered.
func (r *Registry) Codecs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codecs := make([]string, 0, len(r.factories))
	for codec := range r.factories {
		codecs = append(codecs, codec)
	}
	return codecs
}

// Construct builds an empty resource of the given codec.
func (r *Registry) Construct(codec string, deps Deps) (Interactable, error) {
	r.mu.RLock()
	factory, ok := r.factories[codec]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
	}
	return factory(deps), nil
}

// MustConstruct is Construct for codecs that are known to be
// registered. An unknown codec here is an operator-time configuration
// error, not a runtime condition to recover from, so it panics.
func (r *Registry) MustConstruct(codec string, deps Deps) Interactable {
	built, err := r.Construct(codec, deps)
	if err != nil {
		panic(err.Error())
	}
	return built
}
