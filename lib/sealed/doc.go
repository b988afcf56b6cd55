// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for community
// key material at rest. It wraps filippo.io/age for the specific
// operations Concord needs: generate x25519 keypairs, encrypt to one
// or more recipients, and decrypt with a private key.
//
// When the operator configures a key-sealing identity, each
// community's X448 private key is stored as an age ciphertext instead
// of a plain base64 blob, so a copied data directory does not leak
// long-term keys. Ciphertext is base64-encoded for storage in the
// community's persisted configuration. Callers pass plaintext []byte
// to [Encrypt] and receive a base64 string; [Decrypt] accepts a
// base64 string and returns plaintext.
//
// Private keys and decrypted plaintext live in [secret.Buffer] values
// backed by mmap memory outside the Go heap (locked against swap,
// excluded from core dumps, zeroed on Close).
//
// Depends on lib/secret for secure memory allocation.
package sealed
