// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/concordnet/concord/lib/codec"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/store"
	"github.com/concordnet/concord/protocol"
)

// ChunkCapacity is the maximum number of messages per chunk file. A
// full chunk is never appended to; the next message opens a new chunk.
const ChunkCapacity = 800

// Chunk files are zstd-compressed CBOR. The encoder and decoder are
// shared across channels; both are safe for concurrent use.
var (
	chunkEncoder *zstd.Encoder
	chunkDecoder *zstd.Decoder
)

func init() {
	var err error
	chunkEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("resource: zstd encoder initialization failed: " + err.Error())
	}
	chunkDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("resource: zstd decoder initialization failed: " + err.Error())
	}
}

// Message is one entry in a text channel's history.
type Message struct {
	// ID identifies the message.
	ID ref.ID `json:"id"`

	// Sender is the authenticated user who sent the message.
	Sender ref.ID `json:"sender"`

	// Body is the message text.
	Body string `json:"body"`

	// SentAt is the server-side timestamp of the append.
	SentAt time.Time `json:"sent_at"`
}

// TextChannel is a chat channel backed by append-only chunk files.
// It supports two operations: send_message appends to the newest
// chunk (opening a new one when full) and broadcasts the message
// community-wide; get_messages pages backwards through history,
// newest first.
type TextChannel struct {
	meta
	deps Deps

	// mu serializes chunk bookkeeping and appends. Appends hold it
	// across the chunk save so two concurrent sends cannot both
	// write the same chunk index.
	mu sync.Mutex

	// chunkCount and tailLength mirror the store: the number of
	// chunk files, and the number of entries in the newest one.
	// Populated from the store on first use.
	chunkCount int
	tailLength int
	loaded     bool
}

// NewTextChannel creates an empty text channel with a fresh ID.
func NewTextChannel(name string, deps Deps) (*TextChannel, error) {
	identity, err := newMeta(name)
	if err != nil {
		return nil, fmt.Errorf("text channel name: %w", err)
	}
	return &TextChannel{meta: identity, deps: deps}, nil
}

// Codec implements Interactable.
func (t *TextChannel) Codec() string { return CodecText }

func (t *TextChannel) chunkScope() store.Scope {
	return dataScope(t.deps, t.path, t.name)
}

func chunkKey(index int) string {
	return fmt.Sprintf("chunk-%08d", index)
}

// syncCounts populates chunkCount and tailLength from the store.
// Called with mu held.
func (t *TextChannel) syncCounts() error {
	if t.loaded {
		return nil
	}
	keys, err := t.deps.Store.List(t.chunkScope())
	if err != nil {
		return fmt.Errorf("listing chunks for %q: %w", t.name, err)
	}
	t.chunkCount = len(keys)
	t.tailLength = 0
	if t.chunkCount > 0 {
		tail, err := t.loadChunk(t.chunkCount - 1)
		if err != nil {
			return err
		}
		t.tailLength = len(tail)
	}
	t.loaded = true
	return nil
}

// loadChunk reads and decodes one chunk file. Called with mu held.
func (t *TextChannel) loadChunk(index int) ([]Message, error) {
	blob, err := t.deps.Store.Load(t.chunkScope(), chunkKey(index))
	if err != nil {
		return nil, fmt.Errorf("loading chunk %d of %q: %w", index, t.name, err)
	}
	decoded, err := chunkDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing chunk %d of %q: %w", index, t.name, err)
	}
	var entries []Message
	if err := codec.Unmarshal(decoded, &entries); err != nil {
		return nil, fmt.Errorf("decoding chunk %d of %q: %w", index, t.name, err)
	}
	return entries, nil
}

// saveChunk encodes and writes one chunk file. Called with mu held.
func (t *TextChannel) saveChunk(index int, entries []Message) error {
	encoded, err := codec.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding chunk %d of %q: %w", index, t.name, err)
	}
	compressed := chunkEncoder.EncodeAll(encoded, nil)
	if err := t.deps.Store.Save(t.chunkScope(), chunkKey(index), compressed); err != nil {
		return fmt.Errorf("saving chunk %d of %q: %w", index, t.name, err)
	}
	return nil
}

// Append adds a message to the channel and returns the stored entry.
func (t *TextChannel) Append(sender ref.ID, body string) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.syncCounts(); err != nil {
		return Message{}, err
	}

	index := t.chunkCount - 1
	var entries []Message
	if t.chunkCount == 0 || t.tailLength >= ChunkCapacity {
		index = t.chunkCount
	} else {
		loaded, err := t.loadChunk(index)
		if err != nil {
			return Message{}, err
		}
		entries = loaded
	}

	message := Message{
		ID:     ref.NewID(),
		Sender: sender,
		Body:   body,
		SentAt: t.deps.clock().Now(),
	}
	entries = append(entries, message)
	if err := t.saveChunk(index, entries); err != nil {
		return Message{}, err
	}
	if index == t.chunkCount {
		t.chunkCount++
	}
	t.tailLength = len(entries)
	return message, nil
}

// History returns up to amount messages, newest first, skipping the
// given number of most recent entries.
func (t *TextChannel) History(skip, amount int) ([]Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.syncCounts(); err != nil {
		return nil, err
	}

	var page []Message
	remainingSkip := skip
	for index := t.chunkCount - 1; index >= 0 && len(page) < amount; index-- {
		entries, err := t.loadChunk(index)
		if err != nil {
			return nil, err
		}
		for position := len(entries) - 1; position >= 0 && len(page) < amount; position-- {
			if remainingSkip > 0 {
				remainingSkip--
				continue
			}
			page = append(page, entries[position])
		}
	}
	return page, nil
}

// Snapshot implements Interactable.
func (t *TextChannel) Snapshot() (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.syncCounts(); err != nil {
		return nil, err
	}
	total := 0
	if t.chunkCount > 0 {
		total = (t.chunkCount-1)*ChunkCapacity + t.tailLength
	}
	snapshot, err := json.Marshal(struct {
		ID       ref.ID `json:"id"`
		Name     string `json:"name"`
		Chunks   int    `json:"chunks"`
		Messages int    `json:"messages"`
	}{ID: t.id, Name: t.name, Chunks: t.chunkCount, Messages: total})
	if err != nil {
		return nil, fmt.Errorf("encoding text channel snapshot: %w", err)
	}
	return snapshot, nil
}

// textState is the persisted form. Message history lives in the chunk
// files, which are authoritative; only identity is stored here.
type textState struct {
	ID   ref.ID `json:"id"`
	Name string `json:"name"`
}

// MarshalState implements Interactable.
func (t *TextChannel) MarshalState() ([]byte, error) {
	return codec.Marshal(textState{ID: t.id, Name: t.name})
}

// UnmarshalState implements Interactable.
func (t *TextChannel) UnmarshalState(data []byte) error {
	var state textState
	if err := codec.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decoding text channel state: %w", err)
	}
	if err := ref.ValidateResourceName(state.Name); err != nil {
		return fmt.Errorf("persisted text channel name: %w", err)
	}
	if state.ID.IsZero() {
		return fmt.Errorf("persisted text channel %q has no ID", state.Name)
	}
	t.id = state.ID
	t.name = state.Name
	return nil
}

// RunFunction implements Interactable.
func (t *TextChannel) RunFunction(_ context.Context, call protocol.Envelope) protocol.Envelope {
	switch function := call.FieldOr(protocol.TagFunction, ""); function {
	case "get_messages":
		return t.runGetMessages(call)
	case "send_message":
		return t.runSendMessage(call)
	default:
		return protocol.NewError(call.ID,
			fmt.Sprintf("text channel %q has no function %q", t.name, function))
	}
}

func (t *TextChannel) runGetMessages(call protocol.Envelope) protocol.Envelope {
	amount, err := parseCount(call.FieldOr(protocol.TagAmount, ""), "amount")
	if err != nil {
		return protocol.NewError(call.ID, err.Error())
	}
	skip, err := parseCount(call.FieldOr(protocol.TagLoaded, "0"), "loaded")
	if err != nil {
		return protocol.NewError(call.ID, err.Error())
	}

	page, err := t.History(skip, amount)
	if err != nil {
		t.deps.logger().Error("reading channel history",
			"channel", t.name, "error", err)
		return protocol.NewError(call.ID, "message history is unavailable")
	}
	encoded, err := json.Marshal(page)
	if err != nil {
		return protocol.NewError(call.ID, "message history is unavailable")
	}
	return protocol.NewSuccess(call.ID).
		WithField(protocol.TagMessages, string(encoded)).
		WithField(protocol.TagAmount, strconv.Itoa(len(page)))
}

func (t *TextChannel) runSendMessage(call protocol.Envelope) protocol.Envelope {
	body, ok := call.Field(protocol.TagMessage)
	if !ok || body == "" {
		return protocol.NewError(call.ID, "send_message requires a message body")
	}

	message, err := t.Append(call.Sender, body)
	if err != nil {
		t.deps.logger().Error("appending message",
			"channel", t.name, "error", err)
		return protocol.NewError(call.ID, "message could not be stored")
	}

	encoded, marshalErr := json.Marshal(message)
	if marshalErr != nil {
		return protocol.NewError(call.ID, "message could not be encoded")
	}
	t.deps.broadcast(protocol.New(protocol.TypeUpdate).
		WithField(protocol.TagPath, t.path.String()).
		WithField(protocol.TagName, t.name).
		WithField(protocol.TagMessage, string(encoded)))

	return protocol.NewSuccess(call.ID).
		WithField(protocol.TagMessage, string(encoded))
}

// parseCount parses a non-negative integer payload field.
func parseCount(raw, field string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %q is not a number", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("field %q must not be negative", field)
	}
	return value, nil
}
