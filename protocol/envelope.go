// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/concordnet/concord/lib/ref"
)

// Envelope is the message unit exchanged between a Concord server and
// its peers. Treat an Envelope as an immutable value: construct it with
// New* and derive variants with the With* setters, which return a new
// logical value and never mutate the receiver. No component observes a
// partially-populated envelope during dispatch.
type Envelope struct {
	// ID correlates requests and responses: a reply carries the same
	// ID as the envelope it answers. Caller-assigned, or freshly
	// generated by the constructors.
	ID ref.ID

	// Type is the message kind.
	Type MessageType

	// Sender and Receiver are optional transport-level identifiers.
	// They are set by the transport layer or forwarding logic and are
	// never trusted when client-supplied without verification.
	Sender   ref.ID
	Receiver ref.ID

	// Data is the payload mapping. Insertion order is irrelevant.
	// Numbers and nested structures are carried as their string/JSON
	// form; the consumer parses them back and treats parse failure as
	// a request error, not a crash.
	Data map[FieldTag]string

	// Log is an optional diagnostic note. Peers may ignore it.
	Log string
}

// New creates an envelope of the given type with a fresh ID and an
// empty payload.
func New(messageType MessageType) Envelope {
	return Envelope{
		ID:   ref.NewID(),
		Type: messageType,
		Data: map[FieldTag]string{},
	}
}

// NewReply creates an envelope of the given type correlated to the
// request: it carries the request's ID.
func NewReply(request Envelope, messageType MessageType) Envelope {
	return Envelope{
		ID:   request.ID,
		Type: messageType,
		Data: map[FieldTag]string{},
	}
}

// NewError creates an error envelope correlated to the given ID with a
// human-readable reason.
func NewError(correlated ref.ID, reason string) Envelope {
	return Envelope{
		ID:   correlated,
		Type: TypeError,
		Data: map[FieldTag]string{TagReason: reason},
	}
}

// NewSuccess creates a success envelope correlated to the given ID.
func NewSuccess(correlated ref.ID) Envelope {
	return Envelope{
		ID:   correlated,
		Type: TypeSuccess,
		Data: map[FieldTag]string{},
	}
}

// WithID returns a copy of the envelope with the given ID.
func (e Envelope) WithID(id ref.ID) Envelope {
	e.ID = id
	return e
}

// WithSender returns a copy of the envelope with the given sender.
func (e Envelope) WithSender(sender ref.ID) Envelope {
	e.Sender = sender
	return e
}

// WithReceiver returns a copy of the envelope with the given receiver.
func (e Envelope) WithReceiver(receiver ref.ID) Envelope {
	e.Receiver = receiver
	return e
}

// WithField returns a copy of the envelope with one payload field set.
// The data map is copied, so the original envelope is unaffected.
func (e Envelope) WithField(tag FieldTag, value string) Envelope {
	data := make(map[FieldTag]string, len(e.Data)+1)
	for existingTag, existingValue := range e.Data {
		data[existingTag] = existingValue
	}
	data[tag] = value
	e.Data = data
	return e
}

// WithLog returns a copy of the envelope with a diagnostic note.
func (e Envelope) WithLog(log string) Envelope {
	e.Log = log
	return e
}

// Field returns the payload value for a tag and whether it is present.
func (e Envelope) Field(tag FieldTag) (string, bool) {
	value, ok := e.Data[tag]
	return value, ok
}

// FieldOr returns the payload value for a tag, or fallback if absent.
func (e Envelope) FieldOr(tag FieldTag, fallback string) string {
	if value, ok := e.Data[tag]; ok {
		return value
	}
	return fallback
}

// IsError reports whether the envelope is the error kind.
func (e Envelope) IsError() bool { return e.Type == TypeError }

// wireEnvelope is the JSON wire shape. Encoding always emits the full
// field set, using "" for absent optional identifiers.
type wireEnvelope struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Sender   string         `json:"sender"`
	Receiver string         `json:"receiver"`
	Data     map[string]any `json:"data"`
	Log      string         `json:"log,omitempty"`
}

// Encode serializes the envelope to its JSON wire form.
func Encode(envelope Envelope) ([]byte, error) {
	data := make(map[string]any, len(envelope.Data))
	for tag, value := range envelope.Data {
		data[string(tag)] = value
	}
	encoded, err := json.Marshal(wireEnvelope{
		ID:       envelope.ID.String(),
		Type:     envelope.Type.String(),
		Sender:   envelope.Sender.String(),
		Receiver: envelope.Receiver.String(),
		Data:     data,
		Log:      envelope.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return encoded, nil
}

// Decode deserializes an envelope from its JSON wire form. Decoding is
// total: it always returns a usable envelope.
//
//   - Undecodable input yields an error-kind envelope with a fresh ID
//     and the parse failure in TagReason.
//   - A missing or malformed id gets a fresh ID; malformed sender and
//     receiver default to absent.
//   - An unknown type becomes TypeError; unknown payload keys collapse
//     into TagUnknown.
//   - Nested payload values (objects, arrays, numbers) are re-encoded
//     to their compact JSON string form.
func Decode(raw []byte) Envelope {
	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return New(TypeError).WithField(TagReason, "malformed envelope: "+err.Error())
	}

	id, err := ref.ParseID(wire.ID)
	if err != nil || id.IsZero() {
		id = ref.NewID()
	}
	// Malformed optional identifiers degrade to absent, not to errors.
	sender, _ := ref.ParseID(wire.Sender)
	receiver, _ := ref.ParseID(wire.Receiver)

	data := make(map[FieldTag]string, len(wire.Data))
	for key, value := range wire.Data {
		data[ParseFieldTag(key)] = stringifyValue(value)
	}

	return Envelope{
		ID:       id,
		Type:     ParseMessageType(wire.Type),
		Sender:   sender,
		Receiver: receiver,
		Data:     data,
		Log:      wire.Log,
	}
}

// stringifyValue renders a decoded JSON payload value as the string the
// data mapping carries: strings pass through, everything else becomes
// its compact JSON form.
func stringifyValue(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		// json.Unmarshal only produces marshalable values.
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
