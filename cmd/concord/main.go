// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Concord is the community server. It hosts named communities, each a
// tree of text, voice, and category resources, and serves them to
// clients over persistent WebSocket connections at
// /community/{name}/.
//
// On startup:
//  1. Loads the YAML configuration (CONCORD_CONFIG or --config).
//  2. Loads every persisted community from the data directory.
//  3. Applies the bootstrap manifest, creating communities that do
//     not exist yet.
//  4. Serves the WebSocket endpoint until SIGINT/SIGTERM, then saves
//     all communities and exits.
//
// Peers authenticate with an X448 challenge handshake against the
// community key; user identities are resolved through an external
// HTTP directory provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/concordnet/concord/community"
	"github.com/concordnet/concord/gateway"
	"github.com/concordnet/concord/lib/config"
	"github.com/concordnet/concord/lib/directory"
	"github.com/concordnet/concord/lib/sealed"
	"github.com/concordnet/concord/lib/store"
	"github.com/concordnet/concord/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("concord", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to concord.yaml (default: $CONCORD_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("concord %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	fileStore, err := store.NewFileStore(cfg.Paths.Data)
	if err != nil {
		return fmt.Errorf("opening data directory: %w", err)
	}

	opts := community.Options{
		Store:  fileStore,
		Logger: logger,
	}
	if cfg.KeySealing.IdentityFile != "" {
		identity, err := sealed.LoadIdentity(cfg.KeySealing.IdentityFile)
		if err != nil {
			return err
		}
		defer identity.Close()

		recipients := cfg.KeySealing.Recipients
		if len(recipients) == 0 {
			own, err := sealed.Recipient(identity)
			if err != nil {
				return err
			}
			recipients = []string{own}
		}
		for _, recipient := range recipients {
			if err := sealed.ParsePublicKey(recipient); err != nil {
				return fmt.Errorf("key_sealing.recipients: %w", err)
			}
		}
		opts.SealIdentity = identity
		opts.SealRecipients = recipients
	}

	registry, err := community.NewRegistry(opts)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	if err := registry.LoadAll(); err != nil {
		return fmt.Errorf("loading communities: %w", err)
	}
	logger.Info("communities loaded", "count", len(registry.Names()))

	if cfg.Bootstrap.ManifestFile != "" {
		manifest, err := config.ReadManifest(cfg.Bootstrap.ManifestFile)
		if err != nil {
			return err
		}
		if err := bootstrap(logger, registry, manifest); err != nil {
			return fmt.Errorf("bootstrapping: %w", err)
		}
	}

	users, err := directory.NewHTTPDirectory(cfg.Directory.BaseURL)
	if err != nil {
		return err
	}
	users.SetTimeout(cfg.DirectoryTimeout())

	listener, err := gateway.NewListener(gateway.ListenerConfig{
		Address:          cfg.Listen.Address,
		Registry:         registry,
		Directory:        users,
		Logger:           logger,
		HandshakeTimeout: cfg.HandshakeDeadline(),
	})
	if err != nil {
		return err
	}

	serveErr := listener.Serve(ctx)

	logger.Info("saving communities before exit")
	if err := registry.SaveAll(); err != nil {
		return errors.Join(serveErr, fmt.Errorf("saving communities: %w", err))
	}
	return serveErr
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, options)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options)), nil
}
