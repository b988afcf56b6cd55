// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package community implements the aggregate a Concord server hosts:
// a named collection of resources plus membership, a long-term X448
// keypair for the connection handshake, and the index of live
// authenticated connections.
//
// A Community owns its resource tree (each resource appears exactly
// once) and dispatches function envelopes to resources by (path,
// name). Broadcast fans an envelope out to every registered
// connection, best-effort per recipient.
//
// Communities persist through lib/store: a config record (identity,
// membership, keypair with the private half as an opaque base64 blob,
// optionally age-sealed) and a flat list of resource records from
// which the tree is rebuilt through the resource registry. The
// package-level Registry loads every persisted community at startup
// and keeps serving the rest when one fails to load.
package community
