// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the envelope exchanged between a Concord
// server and its peers: a typed, identified, optionally-addressed
// key/value payload with a textual JSON wire form.
//
// Every exchange in the system, from the handshake through function
// calls and broadcasts, is one envelope. An envelope is constructed per
// message, serialized on send, deserialized on receive, and discarded
// after handling; nothing caches envelopes.
//
// The package is organized around the envelope's three axes:
//
//   - type.go: the closed enumeration of message kinds
//   - tag.go: the closed enumeration of payload field tags
//   - envelope.go: the envelope value, builder setters, and the codec
//
// Decoding is total. Malformed input never aborts a decode; it
// degrades to the error kind or to explicit unknown/absent values, and
// only protocol-critical fields are treated as hard errors by callers.
package protocol
