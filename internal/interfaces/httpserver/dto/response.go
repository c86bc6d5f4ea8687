package dto

import (
	"time"

	"openchat/server/internal/domain/llm"
	"openchat/server/internal/domain/memory"
	"openchat/server/internal/domain/thread"
)

// ThreadPayload is returned to clients.
type ThreadPayload struct {
	ID            string    `json:"id"`
	Title         *string   `json:"title"`
	ResourceOwner string    `json:"resourceOwner"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ThreadWithMessagesPayload includes the message log.
type ThreadWithMessagesPayload struct {
	ThreadPayload
	Messages []MessagePayload `json:"messages"`
}

// ModelPayload is one selectable model.
type ModelPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Default  bool   `json:"default"`
}

// MemoryPayload is the working memory representation.
type MemoryPayload struct {
	Name         string   `json:"name,omitempty"`
	Traits       []string `json:"traits,omitempty"`
	AnythingElse string   `json:"anythingElse,omitempty"`
}

// FromDomainThread maps the domain thread to DTO.
func FromDomainThread(t *thread.Thread) ThreadPayload {
	return ThreadPayload{
		ID:            t.ID,
		Title:         t.Title,
		ResourceOwner: t.ResourceOwner,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// FromDomainMessage maps the domain message to DTO.
func FromDomainMessage(m thread.Message) MessagePayload {
	parts := make([]PartPayload, 0, len(m.Parts))
	for _, p := range m.Parts {
		parts = append(parts, PartPayload{
			Type:       string(p.Type),
			Text:       p.Text,
			Streaming:  p.Streaming,
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
			State:      string(p.State),
			Input:      p.Input,
			Output:     p.Output,
			ErrorText:  p.ErrorText,
		})
	}
	return MessagePayload{
		ID:    m.ID,
		Role:  string(m.Role),
		Parts: parts,
	}
}

// FromDomainModel maps a catalog model to DTO.
func FromDomainModel(m llm.Model, defaultID string) ModelPayload {
	return ModelPayload{
		ID:       m.ID,
		Name:     m.Name,
		Provider: m.Provider,
		Default:  m.ID == defaultID,
	}
}

// FromDomainMemory maps working memory to DTO.
func FromDomainMemory(m memory.WorkingMemory) MemoryPayload {
	return MemoryPayload{
		Name:         m.Name,
		Traits:       m.Traits,
		AnythingElse: m.AnythingElse,
	}
}
