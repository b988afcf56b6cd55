// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory resolves user identities to their public key
// material. The gateway consults a Directory during the connection
// handshake: a user who cannot be resolved cannot be challenged and is
// rejected. Resolution failures of any kind (including an unreachable
// backend) report ErrUnknownUser so that the handshake never falls
// back to accepting an unverified key.
package directory
