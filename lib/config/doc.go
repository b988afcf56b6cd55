// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the Concord
// server.
//
// Configuration is loaded from a single file specified by either the
// CONCORD_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// A separate operator-edited bootstrap manifest (JSONC: JSON extended
// with comments and trailing commas) describes communities to create
// on first start; see [ReadManifest].
package config
