// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/concordnet/concord/community"
	"github.com/concordnet/concord/lib/config"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/resource"
)

// bootstrap creates the communities the manifest describes.
// Communities that already exist are left untouched, so the manifest
// is safe to apply on every start.
func bootstrap(logger *slog.Logger, registry *community.Registry, manifest *config.Manifest) error {
	for _, entry := range manifest.Communities {
		name, err := ref.ParseCommunityName(entry.Name)
		if err != nil {
			return err
		}
		if _, ok := registry.Get(name); ok {
			continue
		}

		owner, err := ref.ParseID(entry.Owner)
		if err != nil {
			return fmt.Errorf("community %q: %w", entry.Name, err)
		}
		comm, err := registry.Create(name, owner)
		if err != nil {
			return fmt.Errorf("community %q: %w", entry.Name, err)
		}

		for member, roles := range entry.Members {
			memberID, err := ref.ParseID(member)
			if err != nil {
				return fmt.Errorf("community %q: member %q: %w", entry.Name, member, err)
			}
			if err := comm.AddMember(memberID, roles...); err != nil {
				return fmt.Errorf("community %q: member %q: %w", entry.Name, member, err)
			}
		}

		for _, node := range entry.Resources {
			built, err := buildResource(comm, node)
			if err != nil {
				return fmt.Errorf("community %q: %w", entry.Name, err)
			}
			if err := comm.AddResource(built); err != nil {
				return fmt.Errorf("community %q: %w", entry.Name, err)
			}
		}

		if err := comm.Save(); err != nil {
			return fmt.Errorf("community %q: %w", entry.Name, err)
		}
		logger.Info("community bootstrapped",
			"community", entry.Name,
			"resources", len(entry.Resources))
	}
	return nil
}

// buildResource constructs one manifest node, recursing into
// category children.
func buildResource(comm *community.Community, node config.ResourceManifest) (resource.Interactable, error) {
	switch node.Codec {
	case resource.CodecCategory:
		category, err := comm.NewCategory(node.Name)
		if err != nil {
			return nil, err
		}
		for _, childNode := range node.Children {
			child, err := buildResource(comm, childNode)
			if err != nil {
				return nil, err
			}
			if err := category.Insert(child); err != nil {
				return nil, err
			}
		}
		return category, nil
	case resource.CodecText:
		channel, err := comm.NewTextChannel(node.Name)
		if err != nil {
			return nil, err
		}
		return channel, nil
	case resource.CodecVoice:
		channel, err := comm.NewVoiceChannel(node.Name)
		if err != nil {
			return nil, err
		}
		return channel, nil
	default:
		return nil, fmt.Errorf("resource %q: unknown codec %q", node.Name, node.Codec)
	}
}
