package handlers

import (
	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/llm"
	"openchat/server/internal/domain/memory"
	"openchat/server/internal/domain/thread"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat   *ChatHandler
	Thread *ThreadHandler
	Memory *MemoryHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	orchestrator *chat.Orchestrator,
	catalog *llm.Catalog,
	threads *thread.Service,
	memories *memory.Service,
	resourceOwner string,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Chat:   NewChatHandler(orchestrator, catalog, resourceOwner, log),
		Thread: NewThreadHandler(threads, resourceOwner, log),
		Memory: NewMemoryHandler(memories, resourceOwner, log),
	}
}
