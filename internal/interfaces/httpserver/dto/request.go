package dto

import (
	"encoding/json"

	"openchat/server/internal/domain/thread"
)

// PartPayload is one message part in the HTTP contract.
type PartPayload struct {
	Type       string          `json:"type" binding:"required"`
	Text       string          `json:"text,omitempty"`
	Streaming  bool            `json:"streaming,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	State      string          `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

// MessagePayload is one message in the HTTP contract.
type MessagePayload struct {
	ID    string        `json:"id" binding:"required"`
	Role  string        `json:"role" binding:"required"`
	Parts []PartPayload `json:"parts" binding:"required"`
}

// ChatRequest models POST /v1/chat input.
type ChatRequest struct {
	ThreadID         string           `json:"threadId" binding:"required"`
	Messages         []MessagePayload `json:"messages" binding:"required"`
	Trigger          string           `json:"trigger,omitempty"`
	MessageID        string           `json:"messageId,omitempty"`
	ModelID          string           `json:"modelId,omitempty"`
	WebSearchEnabled bool             `json:"webSearchEnabled,omitempty"`
}

// CloneThreadRequest models POST /v1/threads/:id/clone input.
type CloneThreadRequest struct {
	UpToMessageID string `json:"upToMessageId,omitempty"`
}

// UpdateMemoryRequest models PUT /v1/memory input.
type UpdateMemoryRequest struct {
	Name         string   `json:"name,omitempty"`
	Traits       []string `json:"traits,omitempty"`
	AnythingElse string   `json:"anythingElse,omitempty"`
}

// ToDomain maps the payload onto the domain message.
func (m MessagePayload) ToDomain() thread.Message {
	parts := make([]thread.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		parts = append(parts, thread.Part{
			Type:       thread.PartType(p.Type),
			Text:       p.Text,
			Streaming:  p.Streaming,
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
			State:      thread.ToolState(p.State),
			Input:      p.Input,
			Output:     p.Output,
			ErrorText:  p.ErrorText,
		})
	}
	return thread.Message{
		ID:    m.ID,
		Role:  thread.Role(m.Role),
		Parts: parts,
	}
}
