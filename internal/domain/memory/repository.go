package memory

import "context"

// Repository persists one working memory record per resource owner.
type Repository interface {
	// Get returns the owner's working memory. A missing record yields the
	// zero value, not an error.
	Get(ctx context.Context, resourceOwner string) (WorkingMemory, error)

	// Upsert replaces the owner's working memory.
	Upsert(ctx context.Context, resourceOwner string, m WorkingMemory) error
}
