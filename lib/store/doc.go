// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package store provides the persistence collaborator used by
// communities and resources. A Store maps a hierarchical Scope plus a
// key to an opaque byte blob. Callers own serialization; the store
// owns durability.
//
// FileStore lays scopes out as directories under a root and replaces
// each saved file atomically (write to a temporary file in the same
// directory, then rename). MemoryStore keeps everything in a map and
// exists for tests and ephemeral deployments.
package store
