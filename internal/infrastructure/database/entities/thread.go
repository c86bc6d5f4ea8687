package entities

import (
	"time"

	"openchat/server/internal/domain/thread"
)

// Thread is the database schema for conversation threads. The primary key is
// the externally supplied thread id so that create-if-absent can rely on the
// unique constraint.
type Thread struct {
	ID            string    `gorm:"type:varchar(64);primaryKey"`
	Title         *string   `gorm:"type:varchar(256)"`
	ResourceOwner string    `gorm:"type:varchar(64);index:idx_thread_owner_updated;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime;index:idx_thread_owner_updated"`

	Messages []ThreadMessage `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Thread.
func (Thread) TableName() string {
	return "threads"
}

// EtoD converts the database entity to the domain model.
func (t *Thread) EtoD() *thread.Thread {
	return &thread.Thread{
		ID:            t.ID,
		Title:         t.Title,
		ResourceOwner: t.ResourceOwner,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewSchemaThread creates a database entity from the domain model.
func NewSchemaThread(t *thread.Thread) *Thread {
	return &Thread{
		ID:            t.ID,
		Title:         t.Title,
		ResourceOwner: t.ResourceOwner,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
