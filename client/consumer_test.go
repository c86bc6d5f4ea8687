package chatclient_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	chatclient "openchat/server/client"
	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/thread"
)

func newConsumer() (*chatclient.Consumer, *chatclient.ThreadListCache) {
	cache := chatclient.NewThreadListCache()
	return chatclient.NewConsumer(cache, zerolog.Nop()), cache
}

func userMsg(id, text string) thread.Message {
	return thread.Message{
		ID:    id,
		Role:  thread.RoleUser,
		Parts: []thread.Part{thread.TextPart(text)},
	}
}

func TestSendIsOptimisticAndIdempotent(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	msg := userMsg("msg_u1", "hello")
	c.Send(msg)

	if c.Status() != chatclient.StatusSubmitted {
		t.Errorf("status after send: %s", c.Status())
	}
	if got := c.Messages(); len(got) != 1 || got[0].ID != "msg_u1" {
		t.Fatalf("expected the optimistic message, got %d", len(got))
	}

	// Re-sending the same id must not duplicate it.
	c.Send(msg)
	if got := c.Messages(); len(got) != 1 {
		t.Fatalf("duplicate send grew the list to %d", len(got))
	}
}

func TestApplyChunkSplitInvariance(t *testing.T) {
	whole := []chat.StreamEvent{
		chat.TextDeltaEvent("msg_a1", "Hello, world!"),
		chat.DoneEvent(),
	}
	split := []chat.StreamEvent{
		chat.TextDeltaEvent("msg_a1", "Hel"),
		chat.TextDeltaEvent("msg_a1", "lo, "),
		chat.TextDeltaEvent("msg_a1", "wor"),
		chat.TextDeltaEvent("msg_a1", "ld!"),
		chat.DoneEvent(),
	}

	one, _ := newConsumer()
	one.Bind("thr_1", nil)
	for _, ev := range whole {
		one.Apply(ev)
	}

	two, _ := newConsumer()
	two.Bind("thr_1", nil)
	for _, ev := range split {
		two.Apply(ev)
	}

	if !reflect.DeepEqual(one.Messages(), two.Messages()) {
		t.Errorf("chunking changed the final state:\n%+v\nvs\n%+v", one.Messages(), two.Messages())
	}
	if one.Status() != chatclient.StatusIdle || two.Status() != chatclient.StatusIdle {
		t.Errorf("statuses after done: %s, %s", one.Status(), two.Status())
	}
}

func TestApplyInterleavedReasoningAndText(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	c.Apply(chat.ReasoningDeltaEvent("msg_a1", "thinking "))
	c.Apply(chat.ReasoningDeltaEvent("msg_a1", "about it"))
	c.Apply(chat.TextDeltaEvent("msg_a1", "The answer"))
	c.Apply(chat.DoneEvent())

	msgs := c.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one assistant message, got %d", len(msgs))
	}
	parts := msgs[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected reasoning + text parts, got %d", len(parts))
	}
	if parts[0].Type != thread.PartTypeReasoning || parts[0].Text != "thinking about it" {
		t.Errorf("reasoning part: %+v", parts[0])
	}
	if parts[0].Streaming {
		t.Error("reasoning part should be closed after done")
	}
	if parts[1].Type != thread.PartTypeText || parts[1].Text != "The answer" {
		t.Errorf("text part: %+v", parts[1])
	}
}

func TestApplyThreadCreatedBindsOnceAndFillsCache(t *testing.T) {
	c, cache := newConsumer()

	created := time.Now().UTC()
	ev := chat.ThreadCreatedEvent(chat.ThreadInfo{
		ThreadID:  "thr_new",
		Title:     thread.PlaceholderTitle,
		CreatedAt: created,
		UpdatedAt: created,
	})
	c.Apply(ev)
	if c.ThreadID() != "thr_new" {
		t.Fatalf("thread id not bound: %q", c.ThreadID())
	}

	entry, ok := cache.Get("thr_new")
	if !ok {
		t.Fatal("thread-created should upsert the listing cache")
	}
	if entry.Title != thread.PlaceholderTitle {
		t.Errorf("cached title: %q", entry.Title)
	}

	// A duplicate delivery must not rebind.
	dup := chat.ThreadCreatedEvent(chat.ThreadInfo{ThreadID: "thr_other"})
	c.Apply(dup)
	if c.ThreadID() != "thr_new" {
		t.Errorf("duplicate thread-created rebound to %q", c.ThreadID())
	}
}

func TestApplyTitleUpdatedRefinesCache(t *testing.T) {
	c, cache := newConsumer()
	c.Apply(chat.ThreadCreatedEvent(chat.ThreadInfo{ThreadID: "thr_1", Title: thread.PlaceholderTitle}))

	c.Apply(chat.TitleUpdatedEvent("Planning"))
	c.Apply(chat.TitleUpdatedEvent("Planning a trip"))

	entry, _ := cache.Get("thr_1")
	if entry.Title != "Planning a trip" {
		t.Errorf("cached title: %q", entry.Title)
	}
}

func TestApplyToolLifecycle(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	c.Apply(chat.ToolInputDeltaEvent("msg_a1", "call_1", "web_search", `{"query":`))
	c.Apply(chat.ToolInputDeltaEvent("msg_a1", "call_1", "web_search", `"golang"}`))

	output := json.RawMessage(`[{"title":"Go"}]`)
	c.Apply(chat.ToolOutputEvent("msg_a1", "call_1", output, ""))
	c.Apply(chat.TextDeltaEvent("msg_a1", "Found it."))
	c.Apply(chat.DoneEvent())

	msgs := c.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	var toolPart *thread.Part
	for i := range msgs[0].Parts {
		if msgs[0].Parts[i].Type == thread.PartTypeToolCall {
			toolPart = &msgs[0].Parts[i]
		}
	}
	if toolPart == nil {
		t.Fatal("missing tool-call part")
	}
	if string(toolPart.Input) != `{"query":"golang"}` {
		t.Errorf("accumulated input: %s", toolPart.Input)
	}
	if toolPart.State != thread.ToolStateOutputAvailable {
		t.Errorf("tool state: %s", toolPart.State)
	}
	if string(toolPart.Output) != string(output) {
		t.Errorf("tool output: %s", toolPart.Output)
	}
}

func TestApplyToolStatesAreForwardOnly(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	c.Apply(chat.ToolInputDeltaEvent("msg_a1", "call_1", "web_search", `{}`))
	c.Apply(chat.ToolOutputEvent("msg_a1", "call_1", json.RawMessage(`"first"`), ""))

	// A late duplicate or contradictory event must not regress the state.
	c.Apply(chat.ToolOutputEvent("msg_a1", "call_1", nil, "too late"))

	msgs := c.Messages()
	part := msgs[0].Parts[0]
	if part.State != thread.ToolStateOutputAvailable {
		t.Errorf("state regressed to %s", part.State)
	}
	if string(part.Output) != `"first"` {
		t.Errorf("output overwritten: %s", part.Output)
	}
	if part.ErrorText != "" {
		t.Errorf("error text set after terminal state: %q", part.ErrorText)
	}
}

func TestApplyErrorEventPreservesPartialContent(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	c.Send(userMsg("msg_u1", "hello"))
	c.Apply(chat.TextDeltaEvent("msg_a1", "partial answ"))
	c.Apply(chat.ErrorEvent("generation failed"))

	if c.Status() != chatclient.StatusError {
		t.Errorf("status: %s", c.Status())
	}
	if c.ErrorText() != "generation failed" {
		t.Errorf("error text: %q", c.ErrorText())
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user + partial assistant, got %d", len(msgs))
	}
	if msgs[1].PlainText() != "partial answ" {
		t.Errorf("partial content lost: %q", msgs[1].PlainText())
	}
}

func TestAbandonRetainsPartialState(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	c.Send(userMsg("msg_u1", "hello"))
	c.Apply(chat.TextDeltaEvent("msg_a1", "partial"))
	c.Abandon()

	if c.Status() != chatclient.StatusIdle {
		t.Errorf("status after abandon: %s", c.Status())
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].PlainText() != "partial" {
		t.Error("abandon must retain partially appended content")
	}
}

func TestRegenerateTruncatesLocally(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", []thread.Message{
		userMsg("msg_0", "first"),
		{ID: "msg_1", Role: thread.RoleAssistant, Parts: []thread.Part{thread.TextPart("reply")}},
		userMsg("msg_2", "second"),
		{ID: "msg_3", Role: thread.RoleAssistant, Parts: []thread.Part{thread.TextPart("reply two")}},
	})

	c.Regenerate("msg_3")
	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages after truncation, got %d", len(msgs))
	}
	if msgs[len(msgs)-1].ID != "msg_2" {
		t.Errorf("tail after truncation: %s", msgs[len(msgs)-1].ID)
	}

	// Unknown target is a no-op.
	c.Regenerate("msg_unknown")
	if got := c.Messages(); len(got) != 3 {
		t.Fatalf("unknown target changed the list to %d messages", len(got))
	}
}

func TestApplyIgnoresUnknownEventTypes(t *testing.T) {
	c, _ := newConsumer()
	c.Bind("thr_1", nil)

	c.Apply(chat.TextDeltaEvent("msg_a1", "hi"))
	c.Apply(chat.StreamEvent{Type: "future-extension"})
	c.Apply(chat.DoneEvent())

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].PlainText() != "hi" {
		t.Error("unknown event types must not disturb state")
	}
	if c.Status() != chatclient.StatusIdle {
		t.Errorf("status: %s", c.Status())
	}
}
