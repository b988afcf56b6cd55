// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries the build stamp printed by the Concord
// binaries' --version flag. Release builds overwrite the variables
// with -ldflags:
//
//	go build -ldflags "-X github.com/concordnet/concord/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	// Version is the release number, bumped by hand when tagging.
	Version = "0.1.0-dev"

	// GitCommit is the short commit SHA the binary was built from.
	GitCommit = "unknown"

	// GitDirty is "true" when the working tree had local changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Info renders the one-line stamp for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}
