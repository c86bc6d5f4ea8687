package chat

import (
	"encoding/json"
	"time"
)

// EventType discriminates the stream envelope variants.
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventToolInputDelta EventType = "tool-input-delta"
	EventToolOutput     EventType = "tool-output"
	EventThreadCreated  EventType = "thread-created"
	EventTitleUpdated   EventType = "title-updated"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// ThreadInfo is the payload of a thread-created event, mirroring the persisted
// thread so the client can insert it into its listing without a refetch.
type ThreadInfo struct {
	ThreadID      string    `json:"threadId"`
	Title         string    `json:"title"`
	ResourceOwner string    `json:"resourceOwner"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StreamEvent is one unit of the multiplexed server-to-client protocol.
// Exactly the fields for the given Type are set. Events for one logical unit
// arrive in causal order; thread-created precedes anything referencing the
// thread; done and error are terminal.
type StreamEvent struct {
	Type EventType `json:"type"`

	// deltas
	MessageID string `json:"messageId,omitempty"`
	Delta     string `json:"delta,omitempty"`

	// tool lifecycle
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`

	// side channel
	Thread *ThreadInfo `json:"thread,omitempty"`
	Title  string      `json:"title,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func TextDeltaEvent(messageID, delta string) StreamEvent {
	return StreamEvent{Type: EventTextDelta, MessageID: messageID, Delta: delta}
}

func ReasoningDeltaEvent(messageID, delta string) StreamEvent {
	return StreamEvent{Type: EventReasoningDelta, MessageID: messageID, Delta: delta}
}

func ToolInputDeltaEvent(messageID, callID, toolName, delta string) StreamEvent {
	return StreamEvent{
		Type:       EventToolInputDelta,
		MessageID:  messageID,
		ToolCallID: callID,
		ToolName:   toolName,
		Delta:      delta,
	}
}

// ToolOutputEvent carries a tool result. A non-empty errorText marks the call
// failed; output is omitted in that case.
func ToolOutputEvent(messageID, callID string, output json.RawMessage, errorText string) StreamEvent {
	return StreamEvent{
		Type:       EventToolOutput,
		MessageID:  messageID,
		ToolCallID: callID,
		Output:     output,
		ErrorText:  errorText,
	}
}

func ThreadCreatedEvent(info ThreadInfo) StreamEvent {
	return StreamEvent{Type: EventThreadCreated, Thread: &info}
}

func TitleUpdatedEvent(title string) StreamEvent {
	return StreamEvent{Type: EventTitleUpdated, Title: title}
}

func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}
