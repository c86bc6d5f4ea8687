// Package chatclient contains the client half of the streaming chat
// protocol: the stream consumer state machine, the SSE transport, the
// thread-list cache and composer draft persistence.
package chatclient

import (
	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/thread"
)

// Status is the consumer's turn lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Consumer rebuilds typed message state from the multiplexed event stream.
//
// It is a single-threaded cooperative state machine: callers feed it one
// event at a time via Apply, from a single stream per active turn. It is not
// safe for concurrent use.
type Consumer struct {
	messages []thread.Message
	status   Status
	threadID string
	errText  string
	cache    *ThreadListCache
	log      zerolog.Logger
}

// NewConsumer builds a consumer bound to the thread-list cache.
func NewConsumer(cache *ThreadListCache, log zerolog.Logger) *Consumer {
	return &Consumer{
		status: StatusIdle,
		cache:  cache,
		log:    log.With().Str("component", "stream-consumer").Logger(),
	}
}

// Bind attaches the consumer to a thread and seeds it with the persisted
// message log, e.g. when navigating to an existing conversation.
func (c *Consumer) Bind(threadID string, messages []thread.Message) {
	c.threadID = threadID
	c.messages = append([]thread.Message(nil), messages...)
	c.status = StatusIdle
	c.errText = ""
}

// Status returns the current lifecycle state.
func (c *Consumer) Status() Status {
	return c.status
}

// ThreadID returns the bound thread id, empty until known.
func (c *Consumer) ThreadID() string {
	return c.threadID
}

// ErrorText returns the last error event's message.
func (c *Consumer) ErrorText() string {
	return c.errText
}

// Messages returns the current ordered message list.
func (c *Consumer) Messages() []thread.Message {
	out := make([]thread.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Send performs the optimistic local append: the user message enters the
// list immediately, before any network event arrives. The client-assigned
// message id is the reconciliation key, so re-sending the same message is a
// no-op.
func (c *Consumer) Send(msg thread.Message) {
	for _, m := range c.messages {
		if m.ID == msg.ID {
			c.status = StatusSubmitted
			return
		}
	}
	c.messages = append(c.messages, msg)
	c.status = StatusSubmitted
	c.errText = ""
}

// Regenerate truncates the local list to just before the target message,
// mirroring the server's truncation semantics so the two views cannot
// diverge. An unknown target is a no-op.
func (c *Consumer) Regenerate(messageID string) {
	for i, m := range c.messages {
		if m.ID == messageID {
			c.messages = c.messages[:i]
			break
		}
	}
	c.status = StatusSubmitted
	c.errText = ""
}

// Abandon detaches from an in-flight stream, e.g. on navigation. Any
// partially appended trailing message is retained as-is, not rolled back.
func (c *Consumer) Abandon() {
	c.status = StatusIdle
}

// Fail records a transport-level failure that arrived outside the event
// stream.
func (c *Consumer) Fail(message string) {
	c.status = StatusError
	c.errText = message
}

// Apply folds one stream event into the message list. Applying a valid event
// sequence in any chunking yields the same final state.
func (c *Consumer) Apply(ev chat.StreamEvent) {
	switch ev.Type {
	case chat.EventThreadCreated:
		c.applyThreadCreated(ev)
	case chat.EventTitleUpdated:
		if c.cache != nil && c.threadID != "" {
			c.cache.SetTitle(c.threadID, ev.Title)
		}
	case chat.EventTextDelta:
		c.status = StatusStreaming
		c.appendDelta(ev.MessageID, thread.PartTypeText, ev.Delta)
	case chat.EventReasoningDelta:
		c.status = StatusStreaming
		c.appendDelta(ev.MessageID, thread.PartTypeReasoning, ev.Delta)
	case chat.EventToolInputDelta:
		c.status = StatusStreaming
		c.applyToolInputDelta(ev)
	case chat.EventToolOutput:
		c.status = StatusStreaming
		c.applyToolOutput(ev)
	case chat.EventDone:
		c.finishTrailingParts()
		c.status = StatusIdle
	case chat.EventError:
		c.finishTrailingParts()
		c.status = StatusError
		c.errText = ev.Message
	default:
		// Unknown event types are ignored so protocol additions do not
		// break older clients.
		c.log.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown stream event")
	}
}

// applyThreadCreated binds the thread id exactly once; repeated delivery is a
// no-op. The thread-list cache is updated so listings show the new thread
// without a refetch.
func (c *Consumer) applyThreadCreated(ev chat.StreamEvent) {
	if ev.Thread == nil {
		return
	}
	if c.threadID == "" {
		c.threadID = ev.Thread.ThreadID
	}
	if c.cache != nil {
		c.cache.Upsert(ThreadEntry{
			ID:        ev.Thread.ThreadID,
			Title:     ev.Thread.Title,
			UpdatedAt: ev.Thread.UpdatedAt,
		})
	}
}

// trailingAssistant returns the trailing assistant message for the given id,
// opening a fresh one when the stream starts a message the list has not seen.
func (c *Consumer) trailingAssistant(messageID string) *thread.Message {
	if n := len(c.messages); n > 0 {
		last := &c.messages[n-1]
		if last.Role == thread.RoleAssistant && last.ID == messageID {
			return last
		}
	}
	c.messages = append(c.messages, thread.Message{
		ID:   messageID,
		Role: thread.RoleAssistant,
	})
	return &c.messages[len(c.messages)-1]
}

func (c *Consumer) appendDelta(messageID string, partType thread.PartType, delta string) {
	msg := c.trailingAssistant(messageID)

	if n := len(msg.Parts); n > 0 && msg.Parts[n-1].Type == partType {
		last := &msg.Parts[n-1]
		// Reasoning parts stay open until a different part type arrives.
		if partType != thread.PartTypeReasoning || last.Streaming {
			last.Text += delta
			return
		}
	}

	part := thread.Part{Type: partType, Text: delta}
	if partType == thread.PartTypeReasoning {
		part.Streaming = true
	}
	msg.Parts = append(msg.Parts, part)
}

func (c *Consumer) applyToolInputDelta(ev chat.StreamEvent) {
	msg := c.trailingAssistant(ev.MessageID)

	part := findToolPart(msg, ev.ToolCallID)
	if part == nil {
		msg.Parts = append(msg.Parts, thread.ToolCallPart(ev.ToolCallID, ev.ToolName))
		part = &msg.Parts[len(msg.Parts)-1]
	}
	part.Input = append(part.Input, []byte(ev.Delta)...)
}

// applyToolOutput walks the tool part through its forward-only state machine.
// Events arriving after a terminal state are dropped.
func (c *Consumer) applyToolOutput(ev chat.StreamEvent) {
	msg := c.trailingAssistant(ev.MessageID)

	part := findToolPart(msg, ev.ToolCallID)
	if part == nil {
		return
	}
	if part.State.IsTerminal() {
		return
	}
	if part.State == thread.ToolStateInputStreaming {
		part.State = thread.ToolStateInputAvailable
	}

	next := thread.ToolStateOutputAvailable
	if ev.ErrorText != "" {
		next = thread.ToolStateOutputError
	}
	if !part.State.CanTransitionTo(next) {
		return
	}
	part.State = next
	part.Output = ev.Output
	part.ErrorText = ev.ErrorText
}

func findToolPart(msg *thread.Message, callID string) *thread.Part {
	for i := range msg.Parts {
		p := &msg.Parts[i]
		if p.Type == thread.PartTypeToolCall && p.ToolCallID == callID {
			return p
		}
	}
	return nil
}

// finishTrailingParts closes any still-open reasoning part on the trailing
// message.
func (c *Consumer) finishTrailingParts() {
	if len(c.messages) == 0 {
		return
	}
	msg := &c.messages[len(c.messages)-1]
	for i := range msg.Parts {
		msg.Parts[i].Streaming = false
	}
}
