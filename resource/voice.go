// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/concordnet/concord/lib/codec"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/protocol"
)

// Presence is a voice participant's tri-state presence.
type Presence string

const (
	PresenceActive   Presence = "active"
	PresenceMuted    Presence = "muted"
	PresenceDeafened Presence = "deafened"
)

// ParsePresence validates a presence value from the wire.
func ParsePresence(raw string) (Presence, error) {
	switch Presence(raw) {
	case PresenceActive, PresenceMuted, PresenceDeafened:
		return Presence(raw), nil
	default:
		return "", fmt.Errorf("unknown presence %q", raw)
	}
}

// ParticipantState is one voice participant's presence and streaming
// flag.
type ParticipantState struct {
	Presence  Presence `json:"presence"`
	Streaming bool     `json:"streaming"`
}

// VoiceChannel tracks the participants of a voice room. The channel
// carries presence bookkeeping only; media transport happens
// elsewhere. Participants join, leave, and mutate their own state;
// every change is broadcast community-wide.
type VoiceChannel struct {
	meta
	deps Deps

	mu           sync.RWMutex
	participants map[string]ParticipantState
}

// NewVoiceChannel creates an empty voice channel with a fresh ID.
func NewVoiceChannel(name string, deps Deps) (*VoiceChannel, error) {
	identity, err := newMeta(name)
	if err != nil {
		return nil, fmt.Errorf("voice channel name: %w", err)
	}
	return &VoiceChannel{
		meta:         identity,
		deps:         deps,
		participants: make(map[string]ParticipantState),
	}, nil
}

// Codec implements Interactable.
func (v *VoiceChannel) Codec() string { return CodecVoice }

// Participants returns a copy of the participant map keyed by user ID
// string.
func (v *VoiceChannel) Participants() map[string]ParticipantState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	snapshot := make(map[string]ParticipantState, len(v.participants))
	for user, state := range v.participants {
		snapshot[user] = state
	}
	return snapshot
}

// Snapshot implements Interactable.
func (v *VoiceChannel) Snapshot() (json.RawMessage, error) {
	snapshot, err := json.Marshal(struct {
		ID           ref.ID                      `json:"id"`
		Name         string                      `json:"name"`
		Participants map[string]ParticipantState `json:"participants"`
	}{ID: v.id, Name: v.name, Participants: v.Participants()})
	if err != nil {
		return nil, fmt.Errorf("encoding voice channel snapshot: %w", err)
	}
	return snapshot, nil
}

// voiceState is the persisted form. Participants are live-connection
// bookkeeping and are not persisted; a restarted server starts every
// voice channel empty.
type voiceState struct {
	ID   ref.ID `json:"id"`
	Name string `json:"name"`
}

// MarshalState implements Interactable.
func (v *VoiceChannel) MarshalState() ([]byte, error) {
	return codec.Marshal(voiceState{ID: v.id, Name: v.name})
}

// UnmarshalState implements Interactable.
func (v *VoiceChannel) UnmarshalState(data []byte) error {
	var state voiceState
	if err := codec.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decoding voice channel state: %w", err)
	}
	if err := ref.ValidateResourceName(state.Name); err != nil {
		return fmt.Errorf("persisted voice channel name: %w", err)
	}
	if state.ID.IsZero() {
		return fmt.Errorf("persisted voice channel %q has no ID", state.Name)
	}
	v.id = state.ID
	v.name = state.Name
	if v.participants == nil {
		v.participants = make(map[string]ParticipantState)
	}
	return nil
}

// RunFunction implements Interactable.
func (v *VoiceChannel) RunFunction(_ context.Context, call protocol.Envelope) protocol.Envelope {
	switch function := call.FieldOr(protocol.TagFunction, ""); function {
	case "join":
		return v.runJoin(call)
	case "leave":
		return v.runLeave(call)
	case "update_user_state":
		return v.runUpdateUserState(call)
	default:
		return protocol.NewError(call.ID,
			fmt.Sprintf("voice channel %q has no function %q", v.name, function))
	}
}

func (v *VoiceChannel) runJoin(call protocol.Envelope) protocol.Envelope {
	if call.Sender.IsZero() {
		return protocol.NewError(call.ID, "join requires an authenticated sender")
	}
	state := ParticipantState{Presence: PresenceActive}
	if raw, ok := call.Field(protocol.TagPresence); ok {
		presence, err := ParsePresence(raw)
		if err != nil {
			return protocol.NewError(call.ID, err.Error())
		}
		state.Presence = presence
	}

	v.mu.Lock()
	v.participants[call.Sender.String()] = state
	v.mu.Unlock()

	v.broadcastChange(call.Sender, state, true)
	return protocol.NewSuccess(call.ID)
}

func (v *VoiceChannel) runLeave(call protocol.Envelope) protocol.Envelope {
	if call.Sender.IsZero() {
		return protocol.NewError(call.ID, "leave requires an authenticated sender")
	}

	v.mu.Lock()
	_, present := v.participants[call.Sender.String()]
	delete(v.participants, call.Sender.String())
	v.mu.Unlock()

	if present {
		v.broadcastChange(call.Sender, ParticipantState{}, false)
	}
	return protocol.NewSuccess(call.ID)
}

func (v *VoiceChannel) runUpdateUserState(call protocol.Envelope) protocol.Envelope {
	if call.Sender.IsZero() {
		return protocol.NewError(call.ID, "update_user_state requires an authenticated sender")
	}

	v.mu.Lock()
	state, present := v.participants[call.Sender.String()]
	if !present {
		v.mu.Unlock()
		// Updating a participant who is not in the room is a silent
		// no-op, not an error: the leave may simply have raced the
		// update.
		return protocol.NewSuccess(call.ID)
	}
	if raw, ok := call.Field(protocol.TagPresence); ok {
		presence, err := ParsePresence(raw)
		if err != nil {
			v.mu.Unlock()
			return protocol.NewError(call.ID, err.Error())
		}
		state.Presence = presence
	}
	if raw, ok := call.Field(protocol.TagStreaming); ok {
		streaming, err := strconv.ParseBool(raw)
		if err != nil {
			v.mu.Unlock()
			return protocol.NewError(call.ID, "field \"streaming\" is not a boolean")
		}
		state.Streaming = streaming
	}
	v.participants[call.Sender.String()] = state
	v.mu.Unlock()

	v.broadcastChange(call.Sender, state, true)
	return protocol.NewSuccess(call.ID)
}

// participantChange is the JSON body of a voice update broadcast.
type participantChange struct {
	User      ref.ID   `json:"user"`
	Present   bool     `json:"present"`
	Presence  Presence `json:"presence,omitempty"`
	Streaming bool     `json:"streaming"`
}

func (v *VoiceChannel) broadcastChange(user ref.ID, state ParticipantState, present bool) {
	change := participantChange{
		User:      user,
		Present:   present,
		Presence:  state.Presence,
		Streaming: state.Streaming,
	}
	encoded, err := json.Marshal(change)
	if err != nil {
		v.deps.logger().Error("encoding voice update", "channel", v.name, "error", err)
		return
	}
	v.deps.broadcast(protocol.New(protocol.TypeUpdate).
		WithField(protocol.TagPath, v.path.String()).
		WithField(protocol.TagName, v.name).
		WithField(protocol.TagState, string(encoded)))
}
