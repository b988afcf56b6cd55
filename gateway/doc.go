// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway accepts client connections and runs the protocol
// core: the per-connection handshake state machine that turns an
// anonymous transport stream into an authenticated peer, and the
// post-authentication envelope dispatch into the community.
//
// Clients connect over WebSocket to /community/{name}/. Each accepted
// stream gets one Connection running on its own goroutine. The
// handshake proceeds identification, challenge, challenge_response:
// the server seals a random challenge against the user's directory
// public key (X448 Diffie-Hellman with the community keypair, HKDF,
// AES-256-GCM) and the client proves key possession by returning the
// plaintext sealed back the other way. A failed proof closes the
// transport; every other malformed input degrades to a correlated
// error envelope with the connection staying open.
package gateway
