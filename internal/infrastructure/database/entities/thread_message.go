package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"openchat/server/internal/domain/thread"
)

// ThreadMessage stores one message of a thread log, parts serialized as a
// JSONB array.
type ThreadMessage struct {
	ID        string         `gorm:"type:varchar(64);primaryKey"`
	ThreadID  string         `gorm:"type:varchar(64);index:idx_thread_message_sequence;not null"`
	Role      string         `gorm:"size:32;not null"`
	Parts     datatypes.JSON `gorm:"type:jsonb;not null"`
	Sequence  int            `gorm:"index:idx_thread_message_sequence;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ThreadMessage.
func (ThreadMessage) TableName() string {
	return "thread_messages"
}

// EtoD converts the database entity to the domain model.
func (m *ThreadMessage) EtoD() (*thread.Message, error) {
	var parts []thread.Part
	if len(m.Parts) > 0 {
		if err := json.Unmarshal(m.Parts, &parts); err != nil {
			return nil, fmt.Errorf("decode message parts: %w", err)
		}
	}
	return &thread.Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      thread.Role(m.Role),
		Parts:     parts,
		Sequence:  m.Sequence,
		CreatedAt: m.CreatedAt,
	}, nil
}

// NewSchemaThreadMessage creates a database entity from the domain model.
func NewSchemaThreadMessage(m *thread.Message) (*ThreadMessage, error) {
	parts, err := json.Marshal(m.Parts)
	if err != nil {
		return nil, fmt.Errorf("encode message parts: %w", err)
	}
	return &ThreadMessage{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      string(m.Role),
		Parts:     datatypes.JSON(parts),
		Sequence:  m.Sequence,
		CreatedAt: m.CreatedAt,
	}, nil
}
