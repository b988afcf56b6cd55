// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"testing"

	"github.com/concordnet/concord/community"
	"github.com/concordnet/concord/lib/config"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/store"
	"github.com/concordnet/concord/resource"
)

func testManifest(owner, member ref.ID) *config.Manifest {
	return &config.Manifest{
		Communities: []config.CommunityManifest{
			{
				Name:  "acme",
				Owner: owner.String(),
				Members: map[string][]string{
					member.String(): {"moderator"},
				},
				Resources: []config.ResourceManifest{
					{
						Codec: resource.CodecCategory,
						Name:  "general",
						Children: []config.ResourceManifest{
							{Codec: resource.CodecText, Name: "chat"},
							{Codec: resource.CodecVoice, Name: "hangout"},
						},
					},
					{Codec: resource.CodecText, Name: "lobby"},
				},
			},
		},
	}
}

func TestBootstrap(t *testing.T) {
	registry, err := community.NewRegistry(community.Options{
		Store: store.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer registry.CloseAll()

	owner := ref.NewID()
	member := ref.NewID()
	if err := bootstrap(slog.Default(), registry, testManifest(owner, member)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	name, err := ref.ParseCommunityName("acme")
	if err != nil {
		t.Fatalf("ParseCommunityName: %v", err)
	}
	comm, ok := registry.Get(name)
	if !ok {
		t.Fatal("acme was not created")
	}
	if comm.Owner() != owner {
		t.Errorf("owner = %s, want %s", comm.Owner(), owner)
	}
	roles, ok := comm.Permissions(member)
	if !ok || len(roles) != 1 || roles[0] != "moderator" {
		t.Errorf("member roles = %v, %v", roles, ok)
	}

	general, ok := comm.FindResource("general")
	if !ok {
		t.Fatal("general was not created")
	}
	category, ok := general.(*resource.Category)
	if !ok {
		t.Fatalf("general is %T, want category", general)
	}
	if _, ok := category.Find("chat"); !ok {
		t.Error("chat is missing under general")
	}
	if _, ok := category.Find("hangout"); !ok {
		t.Error("hangout is missing under general")
	}
	if _, ok := comm.FindResource("lobby"); !ok {
		t.Error("lobby was not created")
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	backing := store.NewMemoryStore()
	registry, err := community.NewRegistry(community.Options{Store: backing})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer registry.CloseAll()

	owner := ref.NewID()
	manifest := testManifest(owner, ref.NewID())
	if err := bootstrap(slog.Default(), registry, manifest); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}

	// A second application must skip the existing community rather
	// than fail on the duplicate name.
	if err := bootstrap(slog.Default(), registry, manifest); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if got := len(registry.Names()); got != 1 {
		t.Errorf("communities = %d, want 1", got)
	}
}

func TestBootstrapRejectsUnknownCodec(t *testing.T) {
	registry, err := community.NewRegistry(community.Options{
		Store: store.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer registry.CloseAll()

	manifest := &config.Manifest{
		Communities: []config.CommunityManifest{
			{
				Name:  "bad",
				Owner: ref.NewID().String(),
				Resources: []config.ResourceManifest{
					{Codec: "video", Name: "theater"},
				},
			},
		},
	}
	if err := bootstrap(slog.Default(), registry, manifest); err == nil {
		t.Fatal("expected codec error")
	}
}
