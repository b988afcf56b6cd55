// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Concord's standard CBOR encoding
// configuration.
//
// Concord uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the envelope wire form, resource
//     state snapshots sent to peers, and CLI output.
//   - CBOR for machine-written persisted state: community
//     configuration, membership records, resource state files, and
//     chat chunk files.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Concord package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, so a rewritten state file only differs when the state does.
//
// For buffer-oriented operations (files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Types that are only ever persisted use `cbor` struct tags; types
// that also cross the JSON wire use `json` tags, which fxamacker/cbor
// reads as a fallback. Never use both tags on the same field.
package codec
