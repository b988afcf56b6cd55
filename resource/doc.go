// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource implements the addressable resources hosted inside
// a community: categories, text channels, and voice channels. Every
// resource satisfies Interactable, the capability set the dispatcher
// relies on, and is instantiated through an explicit Registry keyed by
// codec name so that persisted state can be rehydrated into the right
// concrete type.
//
// Resources form a tree. A Category owns an ordered list of children;
// a resource lives in at most one place at a time, and its path is
// assigned on insertion. The community's dispatcher resolves a (path,
// name) address by recursing through categories and hands the envelope
// to the target's RunFunction.
package resource
