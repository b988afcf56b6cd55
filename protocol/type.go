// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "strings"

// MessageType is the kind of an envelope. The set is closed: every
// value a peer can legitimately send is enumerated here, and anything
// else deserializes to TypeError, never silently to another
// meaningful kind.
type MessageType string

const (
	// TypeIdentification opens the handshake: the peer claims a user
	// identifier (TagUserID).
	TypeIdentification MessageType = "identification"

	// TypeChallenge is the server's reply to an identification: the
	// community public key (TagPublicKey) and an encrypted challenge
	// (TagChallenge).
	TypeChallenge MessageType = "challenge"

	// TypeChallengeResponse carries the peer's decrypted challenge
	// proof (TagResponse).
	TypeChallengeResponse MessageType = "challenge_response"

	// TypeIdentificationResponse completes the handshake: the payload
	// enumerates every resource in the community (TagResources).
	TypeIdentificationResponse MessageType = "identification_response"

	// TypePing is a keep-alive probe carrying the peer's last measured
	// round trip (TagRTT).
	TypePing MessageType = "ping"

	// TypePong answers a ping, correlated by the ping's ID.
	TypePong MessageType = "pong"

	// TypeFunction invokes a named operation (TagFunction) on a
	// resource addressed by TagName and TagPath.
	TypeFunction MessageType = "function"

	// TypeUpdate is a server-initiated broadcast: new chat messages,
	// voice state changes, resource changes.
	TypeUpdate MessageType = "update"

	// TypeError reports a failure, correlated to the envelope that
	// caused it. The reason is in TagReason.
	TypeError MessageType = "error"

	// TypeSuccess acknowledges an operation with no other result.
	TypeSuccess MessageType = "success"
)

// messageTypes indexes every known type by its normalized name.
var messageTypes = func() map[string]MessageType {
	index := make(map[string]MessageType)
	for _, t := range []MessageType{
		TypeIdentification,
		TypeChallenge,
		TypeChallengeResponse,
		TypeIdentificationResponse,
		TypePing,
		TypePong,
		TypeFunction,
		TypeUpdate,
		TypeError,
		TypeSuccess,
	} {
		index[normalizeName(string(t))] = t
	}
	return index
}()

// normalizeName lowercases a wire name and folds '-' and ' ' to '_',
// so "Challenge-Response" and "challenge_response" parse identically.
func normalizeName(raw string) string {
	lowered := strings.ToLower(raw)
	lowered = strings.ReplaceAll(lowered, "-", "_")
	return strings.ReplaceAll(lowered, " ", "_")
}

// ParseMessageType maps a wire string to its MessageType. Matching is
// case-insensitive and treats '-', '_', and ' ' as equivalent. Unknown
// values fall back to TypeError.
func ParseMessageType(raw string) MessageType {
	if t, ok := messageTypes[normalizeName(raw)]; ok {
		return t
	}
	return TypeError
}

// String returns the canonical wire name.
func (t MessageType) String() string { return string(t) }

// Known reports whether t is a member of the closed enumeration.
func (t MessageType) Known() bool {
	_, ok := messageTypes[string(t)]
	return ok
}
