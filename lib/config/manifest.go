// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/resource"
)

// Manifest describes communities to create on first start. Manifests
// are authored as JSONC files (JSON extended with // line comments,
// /* block comments */, and trailing commas).
type Manifest struct {
	Communities []CommunityManifest `json:"communities"`
}

// CommunityManifest describes one community: its owner, additional
// members with their roles, and the initial resource tree.
type CommunityManifest struct {
	Name      string              `json:"name"`
	Owner     string              `json:"owner"`
	Members   map[string][]string `json:"members,omitempty"`
	Resources []ResourceManifest  `json:"resources,omitempty"`
}

// ResourceManifest describes one node of a resource tree. Children
// are only valid under categories.
type ResourceManifest struct {
	Codec    string             `json:"codec"`
	Name     string             `json:"name"`
	Children []ResourceManifest `json:"children,omitempty"`
}

// ParseManifest strips JSONC comments and trailing commas from data,
// unmarshals the result, and validates it.
func ParseManifest(data []byte) (*Manifest, error) {
	stripped := jsonc.ToJSON(data)

	var manifest Manifest
	if err := json.Unmarshal(stripped, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// ReadManifest reads a JSONC manifest file from disk and parses it.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// Validate checks every community entry and reports all problems at
// once.
func (m *Manifest) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	for index, entry := range m.Communities {
		label := fmt.Sprintf("communities[%d]", index)
		if entry.Name != "" {
			label = fmt.Sprintf("community %q", entry.Name)
		}

		if _, err := ref.ParseCommunityName(entry.Name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
		if seen[entry.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name", label))
		}
		seen[entry.Name] = true

		if _, err := ref.ParseID(entry.Owner); err != nil {
			errs = append(errs, fmt.Errorf("%s: owner: %w", label, err))
		}
		for member := range entry.Members {
			if _, err := ref.ParseID(member); err != nil {
				errs = append(errs, fmt.Errorf("%s: member %q: %w", label, member, err))
			}
		}

		errs = append(errs, validateResources(label, entry.Resources)...)
	}

	return errors.Join(errs...)
}

func validateResources(label string, entries []ResourceManifest) []error {
	var errs []error
	names := make(map[string]bool)
	for _, entry := range entries {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s: resource with empty name", label))
			continue
		}
		child := fmt.Sprintf("%s: resource %q", label, entry.Name)
		if names[entry.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate sibling name", child))
		}
		names[entry.Name] = true

		switch entry.Codec {
		case resource.CodecCategory:
			errs = append(errs, validateResources(child, entry.Children)...)
		case resource.CodecText, resource.CodecVoice:
			if len(entry.Children) > 0 {
				errs = append(errs, fmt.Errorf("%s: only categories hold children", child))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown codec %q", child, entry.Codec))
		}
	}
	return errs
}
