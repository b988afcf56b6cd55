// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references for
// Concord entities. Users, resources, and envelopes are identified by a
// 128-bit ID; communities by a validated name that doubles as their
// on-disk and lookup key; resources within a community by a leaf name
// plus a dotted ancestor path.
//
// All constructors validate their inputs and return errors for invalid
// values. Once constructed, a ref is immutable. JSON marshaling uses the
// canonical text form via encoding.TextMarshaler, so ref types can be
// used directly in wire and persistence structs.
package ref
