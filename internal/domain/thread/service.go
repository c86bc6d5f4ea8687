package thread

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"openchat/server/internal/utils/platformerrors"
)

// Service owns thread lifecycle and message-log operations on top of the
// repositories. It is the single source of truth consulted by the chat
// orchestrator and the HTTP handlers.
type Service struct {
	threads  Repository
	messages MessageRepository
	log      zerolog.Logger
}

// NewService wires dependencies.
func NewService(threads Repository, messages MessageRepository, log zerolog.Logger) *Service {
	return &Service{
		threads:  threads,
		messages: messages,
		log:      log.With().Str("component", "thread-service").Logger(),
	}
}

// Resolve fetches the thread or creates it with the placeholder title. The
// returned boolean reports whether this call created the thread. Creation is
// create-if-absent: a concurrent duplicate submission for the same id yields
// the stored thread and created=false.
func (s *Service) Resolve(ctx context.Context, threadID, resourceOwner string) (*Thread, bool, error) {
	title := PlaceholderTitle
	now := time.Now().UTC()
	candidate := &Thread{
		ID:            threadID,
		Title:         &title,
		ResourceOwner: resourceOwner,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	t, created, err := s.threads.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("resolve thread: %w", err)
	}
	if created {
		s.log.Info().Str("thread_id", t.ID).Msg("thread created")
	}
	return t, created, nil
}

// Get fetches a thread by id.
func (s *Service) Get(ctx context.Context, threadID string) (*Thread, error) {
	return s.threads.GetByID(ctx, threadID)
}

// List returns the owner's threads, most recently updated first.
func (s *Service) List(ctx context.Context, resourceOwner string) ([]*Thread, error) {
	return s.threads.ListByOwner(ctx, resourceOwner)
}

// Delete removes a thread and its messages.
func (s *Service) Delete(ctx context.Context, threadID string) error {
	if err := s.threads.Delete(ctx, threadID); err != nil {
		return err
	}
	s.log.Info().Str("thread_id", threadID).Msg("thread deleted")
	return nil
}

// Recall returns the thread's persisted message log in insertion order. A
// thread with no messages yields an empty slice.
func (s *Service) Recall(ctx context.Context, threadID string) ([]Message, error) {
	return s.messages.ListByThread(ctx, threadID)
}

// Truncate deletes the target message and every message after it, so a
// regenerated response replaces the discarded tail. A target that is not in
// the log is a no-op: retried regenerations must not fail.
func (s *Service) Truncate(ctx context.Context, threadID, messageID string) error {
	stored, err := s.messages.ListByThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("recall for truncation: %w", err)
	}

	targetIdx := -1
	for i, m := range stored {
		if m.ID == messageID {
			targetIdx = i
			break
		}
	}
	if targetIdx == -1 {
		s.log.Debug().
			Str("thread_id", threadID).
			Str("message_id", messageID).
			Msg("truncation target not found, nothing to delete")
		return nil
	}

	ids := make([]string, 0, len(stored)-targetIdx)
	for _, m := range stored[targetIdx:] {
		ids = append(ids, m.ID)
	}
	if err := s.messages.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("delete truncated messages: %w", err)
	}

	s.log.Info().
		Str("thread_id", threadID).
		Int("deleted", len(ids)).
		Msg("thread truncated for regeneration")
	return nil
}

// AppendTurn persists a completed exchange: the user message(s) of the turn
// followed by the assistant response. Sequence numbers continue from the
// stored tail, and the thread's updated_at is bumped.
func (s *Service) AppendTurn(ctx context.Context, threadID string, turn []Message) error {
	if len(turn) == 0 {
		return nil
	}

	stored, err := s.messages.ListByThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("recall for append: %w", err)
	}

	next := 0
	if n := len(stored); n > 0 {
		next = stored[n-1].Sequence + 1
	}

	existing := make(map[string]struct{}, len(stored))
	for _, m := range stored {
		existing[m.ID] = struct{}{}
	}

	toAppend := make([]Message, 0, len(turn))
	now := time.Now().UTC()
	for _, m := range turn {
		if _, ok := existing[m.ID]; ok {
			continue
		}
		m.ThreadID = threadID
		m.Sequence = next
		m.CreatedAt = now
		next++
		toAppend = append(toAppend, m)
	}
	if len(toAppend) == 0 {
		return nil
	}

	if err := s.messages.Append(ctx, toAppend); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return s.threads.Touch(ctx, threadID)
}

// SetTitle persists a generated title.
func (s *Service) SetTitle(ctx context.Context, threadID, title string) error {
	return s.threads.UpdateTitle(ctx, threadID, title)
}

// Clone copies a thread into a fresh one. When upToMessageID is set, only the
// prefix up to and including that message is copied; an unknown id copies
// the whole log. Cloned messages receive new ids.
func (s *Service) Clone(ctx context.Context, sourceID, upToMessageID string) (*Thread, error) {
	source, err := s.threads.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	stored, err := s.messages.ListByThread(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("recall source messages: %w", err)
	}

	if upToMessageID != "" {
		for i, m := range stored {
			if m.ID == upToMessageID {
				stored = stored[:i+1]
				break
			}
		}
	}

	now := time.Now().UTC()
	clone := &Thread{
		ID:            NewThreadID(),
		Title:         source.Title,
		ResourceOwner: source.ResourceOwner,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, wasNew, err := s.threads.CreateIfAbsent(ctx, clone)
	if err != nil {
		return nil, fmt.Errorf("create clone: %w", err)
	}
	if !wasNew {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeConflict, "clone id collided with existing thread", nil)
	}

	copies := make([]Message, 0, len(stored))
	for i, m := range stored {
		m.ID = NewMessageID()
		m.ThreadID = created.ID
		m.Sequence = i
		m.CreatedAt = now
		copies = append(copies, m)
	}
	if err := s.messages.Append(ctx, copies); err != nil {
		return nil, fmt.Errorf("copy messages: %w", err)
	}

	s.log.Info().
		Str("source_id", sourceID).
		Str("clone_id", created.ID).
		Int("messages", len(copies)).
		Msg("thread cloned")
	return created, nil
}

// NewThreadID mints a thread id.
func NewThreadID() string {
	return fmt.Sprintf("thr_%s", uuid.NewString())
}

// NewMessageID mints a message id.
func NewMessageID() string {
	return fmt.Sprintf("msg_%s", uuid.NewString())
}
