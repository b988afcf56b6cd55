// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyex implements the cryptography of the connection
// handshake: X448 keypairs and Diffie-Hellman, HKDF-SHA256 key
// derivation, and AES-256-GCM sealing of the handshake challenge.
//
// The flow, as driven by the gateway:
//
//  1. The server performs X448 between the community's long-term
//     private key and the claimed user's public key ([Keypair.Shared]).
//  2. The shared secret is expanded to a 256-bit symmetric key with
//     HKDF-SHA256 under the fixed "challenge" label
//     ([DeriveChallengeKey]).
//  3. A fresh 32-character challenge ([NewChallenge]) is encrypted
//     with AES-256-GCM under a random 96-bit nonce; the wire blob is
//     base64(nonce || ciphertext+tag) ([SealChallenge]).
//  4. The peer, holding the matching private key, derives the same
//     symmetric key, opens the blob ([OpenChallenge]), and returns the
//     plaintext as its proof of possession.
//
// Private halves and derived keys live in secret.Buffer guarded
// memory. Public keys travel base64-encoded; log statements use
// BLAKE3 fingerprints, never the key itself.
package keyex
