package thread

import "context"

// Repository persists thread metadata. Implementations key threads by the
// externally supplied id and must make CreateIfAbsent atomic so concurrent
// first-turn submissions for the same thread id cannot race into duplicates.
type Repository interface {
	// GetByID fetches a thread, returning a NOT_FOUND platform error when
	// the id is unknown.
	GetByID(ctx context.Context, id string) (*Thread, error)

	// CreateIfAbsent inserts the thread unless one with the same id exists,
	// in which case the stored thread is returned unmodified. The boolean
	// reports whether a row was created.
	CreateIfAbsent(ctx context.Context, t *Thread) (*Thread, bool, error)

	// UpdateTitle replaces the thread title and bumps updated_at.
	UpdateTitle(ctx context.Context, id string, title string) error

	// Touch bumps updated_at, moving the thread to the top of recency-sorted
	// listings.
	Touch(ctx context.Context, id string) error

	// ListByOwner returns the owner's threads, most recently updated first.
	ListByOwner(ctx context.Context, resourceOwner string) ([]*Thread, error)

	// Delete removes the thread and cascades to its messages.
	Delete(ctx context.Context, id string) error
}

// MessageRepository persists per-thread message logs.
type MessageRepository interface {
	// ListByThread returns the thread's messages in insertion order. An
	// unknown or empty thread yields an empty slice, not an error.
	ListByThread(ctx context.Context, threadID string) ([]Message, error)

	// Append stores messages at the tail of the thread log. Appends are
	// idempotent on message id: re-inserting an already stored id is a no-op.
	Append(ctx context.Context, messages []Message) error

	// DeleteByIDs removes the given messages.
	DeleteByIDs(ctx context.Context, ids []string) error
}
