// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// FieldTag names a payload field inside an envelope's data mapping.
// The set is closed. A tag the parser does not recognize maps to
// TagUnknown with its value preserved, so unexpected fields surface
// explicitly instead of being dropped.
type FieldTag string

const (
	// TagUserID is the claimed or addressed 128-bit user identifier.
	TagUserID FieldTag = "user_id"

	// TagPublicKey is a base64-encoded X448 public key.
	TagPublicKey FieldTag = "public_key"

	// TagChallenge is the base64 nonce||ciphertext of an encrypted
	// handshake challenge.
	TagChallenge FieldTag = "challenge"

	// TagResponse is the peer's decrypted challenge plaintext.
	TagResponse FieldTag = "response"

	// TagName is a resource leaf name.
	TagName FieldTag = "name"

	// TagPath is a resource ancestor path (empty = top level).
	TagPath FieldTag = "path"

	// TagFunction is the operation name passed to a resource.
	TagFunction FieldTag = "function"

	// TagCodec is a resource kind tag (category, text, voice).
	TagCodec FieldTag = "codec"

	// TagState is a resource's JSON state snapshot.
	TagState FieldTag = "state"

	// TagResources is the JSON enumeration of a community's resources
	// sent in an identification response.
	TagResources FieldTag = "resources"

	// TagMessage is a chat message body.
	TagMessage FieldTag = "message"

	// TagMessages is a JSON array of chat messages returned by
	// get_messages.
	TagMessages FieldTag = "messages"

	// TagAmount is the requested number of messages, as a decimal
	// string.
	TagAmount FieldTag = "amount"

	// TagLoaded is the number of messages the caller has already
	// loaded (the paging skip), as a decimal string.
	TagLoaded FieldTag = "loaded"

	// TagPresence is a voice participant's tri-state presence:
	// "active", "muted", or "deafened".
	TagPresence FieldTag = "presence"

	// TagStreaming is a voice participant's streaming flag, "true" or
	// "false".
	TagStreaming FieldTag = "streaming"

	// TagRTT is a peer-reported round-trip sample in milliseconds, as
	// a decimal string.
	TagRTT FieldTag = "rtt"

	// TagReason is a human-readable failure description on error
	// envelopes.
	TagReason FieldTag = "reason"

	// TagUnknown collects payload fields whose tag the parser did not
	// recognize.
	TagUnknown FieldTag = "unknown"
)

// fieldTags indexes every known tag by its normalized name.
var fieldTags = func() map[string]FieldTag {
	index := make(map[string]FieldTag)
	for _, tag := range []FieldTag{
		TagUserID, TagPublicKey, TagChallenge, TagResponse,
		TagName, TagPath, TagFunction, TagCodec, TagState, TagResources,
		TagMessage, TagMessages, TagAmount, TagLoaded,
		TagPresence, TagStreaming,
		TagRTT, TagReason, TagUnknown,
	} {
		index[normalizeName(string(tag))] = tag
	}
	return index
}()

// ParseFieldTag maps a wire key to its FieldTag, normalizing the same
// way as message types. Unknown keys map to TagUnknown.
func ParseFieldTag(raw string) FieldTag {
	if tag, ok := fieldTags[normalizeName(raw)]; ok {
		return tag
	}
	return TagUnknown
}

// String returns the canonical wire key.
func (t FieldTag) String() string { return string(t) }
