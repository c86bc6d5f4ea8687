package thread

import (
	"encoding/json"
	"fmt"
	"time"
)

// Thread is one persisted conversation, owned by a single resource owner.
// The id is supplied by the caller on creation so that a brand-new
// conversation can be addressed before the server has seen it.
type Thread struct {
	ID            string    `json:"id"`
	Title         *string   `json:"title"`
	ResourceOwner string    `json:"resourceOwner"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PlaceholderTitle is assigned to freshly created threads until the titler
// produces a real one.
const PlaceholderTitle = "New Chat"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is an ordered, non-empty sequence of parts inside a thread.
// Persisted messages are immutable except for tail-suffix deletion during
// regeneration.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId,omitempty"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Sequence  int       `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// PartType discriminates the closed set of message part variants.
type PartType string

const (
	PartTypeText      PartType = "text"
	PartTypeReasoning PartType = "reasoning"
	PartTypeToolCall  PartType = "tool-call"
)

// ToolState tracks a tool-call part through its lifecycle. Transitions are
// forward-only.
type ToolState string

const (
	ToolStateInputStreaming  ToolState = "input-streaming"
	ToolStateInputAvailable  ToolState = "input-available"
	ToolStateOutputAvailable ToolState = "output-available"
	ToolStateOutputError     ToolState = "output-error"
)

// IsTerminal reports whether the tool call has finished.
func (s ToolState) IsTerminal() bool {
	return s == ToolStateOutputAvailable || s == ToolStateOutputError
}

// CanTransitionTo validates a tool state transition.
func (s ToolState) CanTransitionTo(next ToolState) bool {
	switch s {
	case ToolStateInputStreaming:
		return next == ToolStateInputAvailable
	case ToolStateInputAvailable:
		return next == ToolStateOutputAvailable || next == ToolStateOutputError
	default:
		return false
	}
}

// Part is a tagged union over text, reasoning and tool-call content. Exactly
// the fields for the given Type are meaningful; consumers must switch on
// Type exhaustively.
type Part struct {
	Type PartType `json:"type"`

	// text and reasoning
	Text      string `json:"text,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`

	// tool-call
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	State      ToolState       `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

// TextPart builds a completed text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ReasoningPart builds a reasoning part; streaming marks it as still open.
func ReasoningPart(text string, streaming bool) Part {
	return Part{Type: PartTypeReasoning, Text: text, Streaming: streaming}
}

// ToolCallPart builds a tool-call part in its initial state.
func ToolCallPart(callID, toolName string) Part {
	return Part{
		Type:       PartTypeToolCall,
		ToolCallID: callID,
		ToolName:   toolName,
		State:      ToolStateInputStreaming,
	}
}

// Validate checks the part against its variant contract.
func (p Part) Validate() error {
	switch p.Type {
	case PartTypeText, PartTypeReasoning:
		return nil
	case PartTypeToolCall:
		if p.ToolName == "" {
			return fmt.Errorf("tool-call part missing tool name")
		}
		switch p.State {
		case ToolStateInputStreaming, ToolStateInputAvailable, ToolStateOutputAvailable, ToolStateOutputError:
			return nil
		default:
			return fmt.Errorf("tool-call part has unknown state %q", p.State)
		}
	default:
		return fmt.Errorf("unknown part type %q", p.Type)
	}
}

// PlainText concatenates the text content of all text parts. Used for title
// generation context and webhook payloads.
func (m Message) PlainText() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			out += p.Text
		}
	}
	return out
}

// LastUserText returns the text of the last user message in a history.
func LastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].PlainText()
		}
	}
	return ""
}
