package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Service exposes working-memory reads and writes to the orchestrator and
// the HTTP layer.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "memory-service").Logger(),
	}
}

// Get returns the owner's working memory.
func (s *Service) Get(ctx context.Context, resourceOwner string) (WorkingMemory, error) {
	return s.repo.Get(ctx, resourceOwner)
}

// Update replaces the owner's working memory.
func (s *Service) Update(ctx context.Context, resourceOwner string, m WorkingMemory) error {
	if err := s.repo.Upsert(ctx, resourceOwner, m); err != nil {
		return fmt.Errorf("update working memory: %w", err)
	}
	s.log.Debug().Str("resource_owner", resourceOwner).Msg("working memory updated")
	return nil
}

// PromptContext renders the owner's working memory as a system-prompt
// fragment. Empty memory renders as the empty string so the orchestrator can
// skip the section entirely.
func (s *Service) PromptContext(ctx context.Context, resourceOwner string) (string, error) {
	m, err := s.repo.Get(ctx, resourceOwner)
	if err != nil {
		return "", err
	}
	if m.IsEmpty() {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("What you remember about the user:\n")
	if m.Name != "" {
		fmt.Fprintf(&b, "- They prefer to be called %s\n", m.Name)
	}
	for _, t := range m.Traits {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	if m.AnythingElse != "" {
		fmt.Fprintf(&b, "- %s\n", m.AnythingElse)
	}
	return b.String(), nil
}
