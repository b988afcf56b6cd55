// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/concordnet/concord/lib/clock"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/protocol"
)

func newTestChannel(t *testing.T) (*TextChannel, Deps, *recordingBroadcaster) {
	t.Helper()
	deps, broadcaster := testDeps(t)
	channel, err := NewTextChannel("general", deps)
	if err != nil {
		t.Fatalf("NewTextChannel: %v", err)
	}
	return channel, deps, broadcaster
}

func TestAppendAndHistory(t *testing.T) {
	channel, deps, _ := newTestChannel(t)
	fake := deps.Clock.(*clock.FakeClock)
	sender := ref.NewID()

	for i := 0; i < 5; i++ {
		fake.Advance(time.Second)
		if _, err := channel.Append(sender, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	page, err := channel.History(0, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("History returned %d messages, want 5", len(page))
	}
	// Newest first.
	for i, message := range page {
		want := fmt.Sprintf("message %d", 4-i)
		if message.Body != want {
			t.Errorf("page[%d].Body = %q, want %q", i, message.Body, want)
		}
		if message.Sender != sender {
			t.Errorf("page[%d].Sender = %s, want %s", i, message.Sender, sender)
		}
	}
	for i := 1; i < len(page); i++ {
		if page[i].SentAt.After(page[i-1].SentAt) {
			t.Errorf("page[%d] is newer than page[%d]", i, i-1)
		}
	}
}

func TestChunkRolloverPreservesHistory(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	sender := ref.NewID()
	total := ChunkCapacity + 3

	for i := 0; i < total; i++ {
		if _, err := channel.Append(sender, strconv.Itoa(i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	keys, err := channel.deps.Store.List(channel.chunkScope())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) < 2 {
		t.Fatalf("got %d chunk files, want at least 2", len(keys))
	}

	page, err := channel.History(0, total)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != total {
		t.Fatalf("History returned %d messages, want %d", len(page), total)
	}
	seen := make(map[string]bool, total)
	for i, message := range page {
		want := strconv.Itoa(total - 1 - i)
		if message.Body != want {
			t.Fatalf("page[%d].Body = %q, want %q", i, message.Body, want)
		}
		if seen[message.Body] {
			t.Fatalf("duplicate message %q", message.Body)
		}
		seen[message.Body] = true
	}
}

func TestHistoryPagingBounds(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	sender := ref.NewID()
	for i := 0; i < 10; i++ {
		if _, err := channel.Append(sender, strconv.Itoa(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	page, err := channel.History(0, 4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 4 {
		t.Errorf("History(0, 4) returned %d messages", len(page))
	}

	page, err = channel.History(8, 4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("History(8, 4) returned %d messages, want 2", len(page))
	}
	if len(page) == 2 && (page[0].Body != "1" || page[1].Body != "0") {
		t.Errorf("History(8, 4) = %q, %q, want 1, 0", page[0].Body, page[1].Body)
	}

	page, err = channel.History(20, 4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("History past the end returned %d messages", len(page))
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	channel, deps, _ := newTestChannel(t)
	sender := ref.NewID()
	for i := 0; i < 3; i++ {
		if _, err := channel.Append(sender, strconv.Itoa(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	state, err := channel.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}
	reloaded := &TextChannel{deps: deps}
	if err := reloaded.UnmarshalState(state); err != nil {
		t.Fatalf("UnmarshalState: %v", err)
	}

	page, err := reloaded.History(0, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("History after reload returned %d messages, want 3", len(page))
	}
	if _, err := reloaded.Append(sender, "3"); err != nil {
		t.Fatalf("Append after reload: %v", err)
	}
	page, err = reloaded.History(0, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 4 || page[0].Body != "3" {
		t.Fatalf("History after reload append = %d messages, head %q", len(page), page[0].Body)
	}
}

func TestRunSendMessageBroadcasts(t *testing.T) {
	channel, _, broadcaster := newTestChannel(t)
	sender := ref.NewID()

	call := protocol.New(protocol.TypeFunction).
		WithSender(sender).
		WithField(protocol.TagFunction, "send_message").
		WithField(protocol.TagMessage, "hello there")
	reply := channel.RunFunction(context.Background(), call)
	if reply.IsError() {
		t.Fatalf("send_message failed: %s", reply.FieldOr(protocol.TagReason, ""))
	}
	if reply.ID != call.ID {
		t.Error("reply is not correlated to the call")
	}

	if len(broadcaster.envelopes) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(broadcaster.envelopes))
	}
	update := broadcaster.envelopes[0]
	if update.Type != protocol.TypeUpdate {
		t.Errorf("broadcast type = %q, want update", update.Type)
	}
	if got := update.FieldOr(protocol.TagName, ""); got != "general" {
		t.Errorf("broadcast name = %q", got)
	}
	var message Message
	if err := json.Unmarshal([]byte(update.FieldOr(protocol.TagMessage, "")), &message); err != nil {
		t.Fatalf("decoding broadcast message: %v", err)
	}
	if message.Body != "hello there" || message.Sender != sender {
		t.Errorf("broadcast message = %+v", message)
	}
}

func TestRunSendMessageRequiresBody(t *testing.T) {
	channel, _, broadcaster := newTestChannel(t)
	call := protocol.New(protocol.TypeFunction).
		WithField(protocol.TagFunction, "send_message")
	reply := channel.RunFunction(context.Background(), call)
	if !reply.IsError() {
		t.Error("send_message without a body did not error")
	}
	if len(broadcaster.envelopes) != 0 {
		t.Error("failed send still broadcast an update")
	}
}

func TestRunGetMessages(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	sender := ref.NewID()
	for i := 0; i < 6; i++ {
		if _, err := channel.Append(sender, strconv.Itoa(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	call := protocol.New(protocol.TypeFunction).
		WithField(protocol.TagFunction, "get_messages").
		WithField(protocol.TagAmount, "4").
		WithField(protocol.TagLoaded, "2")
	reply := channel.RunFunction(context.Background(), call)
	if reply.IsError() {
		t.Fatalf("get_messages failed: %s", reply.FieldOr(protocol.TagReason, ""))
	}
	if got := reply.FieldOr(protocol.TagAmount, ""); got != "4" {
		t.Errorf("reply amount = %q, want 4", got)
	}
	var page []Message
	if err := json.Unmarshal([]byte(reply.FieldOr(protocol.TagMessages, "")), &page); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(page) != 4 || page[0].Body != "3" || page[3].Body != "0" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestRunGetMessagesRejectsBadCounts(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	for _, amount := range []string{"", "many", "-1"} {
		call := protocol.New(protocol.TypeFunction).
			WithField(protocol.TagFunction, "get_messages").
			WithField(protocol.TagAmount, amount)
		if reply := channel.RunFunction(context.Background(), call); !reply.IsError() {
			t.Errorf("get_messages accepted amount %q", amount)
		}
	}
}

func TestRunUnknownFunction(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	call := protocol.New(protocol.TypeFunction).
		WithField(protocol.TagFunction, "explode")
	if reply := channel.RunFunction(context.Background(), call); !reply.IsError() {
		t.Error("unknown function did not error")
	}
}
