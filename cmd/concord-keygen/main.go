// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Concord-keygen generates an X448 keypair for enrollment with a
// Concord identity provider. The private key is written to a file
// readable only by its owner; the public key and its fingerprint are
// printed for registration in the user's directory profile.
//
// With --age, it instead generates an age X25519 identity for the
// server's key-sealing configuration.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/sealed"
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
		outputPath  string
		ageIdentity bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("concord-keygen", pflag.ContinueOnError)
	flagSet.StringVarP(&outputPath, "output", "o", "", "write the private key to this file (required)")
	flagSet.BoolVar(&ageIdentity, "age", false, "generate an age identity for server key sealing instead of an X448 user keypair")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("concord-keygen %s\n", version.Info())
		return nil
	}
	if outputPath == "" {
		return fmt.Errorf("--output is required")
	}

	if ageIdentity {
		return generateAge(outputPath)
	}
	return generateUser(outputPath)
}

func generateUser(outputPath string) error {
	keypair, err := keyex.Generate()
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}
	defer keypair.Close()

	if err := writePrivate(outputPath, keypair.PrivateBase64()); err != nil {
		return err
	}

	fmt.Printf("public key:  %s\n", keypair.PublicBase64())
	fmt.Printf("fingerprint: %s\n", keypair.Fingerprint())
	fmt.Fprintf(os.Stderr, "private key written to %s\n", outputPath)
	return nil
}

func generateAge(outputPath string) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generating age identity: %w", err)
	}
	defer keypair.Close()

	if err := writePrivate(outputPath, keypair.PrivateKey.String()); err != nil {
		return err
	}

	fmt.Printf("recipient: %s\n", keypair.PublicKey)
	fmt.Fprintf(os.Stderr, "identity written to %s\n", outputPath)
	return nil
}

// writePrivate refuses to clobber an existing key file.
func writePrivate(path, material string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := file.WriteString(material + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
