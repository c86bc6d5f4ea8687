package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"openchat/server/internal/domain/memory"
)

// WorkingMemory stores the per-owner profile supplied to the model as
// standing context. One row per resource owner.
type WorkingMemory struct {
	ResourceOwner string         `gorm:"type:varchar(64);primaryKey"`
	Name          string         `gorm:"type:varchar(256)"`
	Traits        datatypes.JSON `gorm:"type:jsonb"`
	AnythingElse  string         `gorm:"type:text"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for WorkingMemory.
func (WorkingMemory) TableName() string {
	return "working_memories"
}

// EtoD converts the database entity to the domain model.
func (w *WorkingMemory) EtoD() memory.WorkingMemory {
	var traits []string
	if len(w.Traits) > 0 {
		_ = json.Unmarshal(w.Traits, &traits)
	}
	return memory.WorkingMemory{
		Name:         w.Name,
		Traits:       traits,
		AnythingElse: w.AnythingElse,
	}
}

// NewSchemaWorkingMemory creates a database entity from the domain model.
func NewSchemaWorkingMemory(resourceOwner string, m memory.WorkingMemory) *WorkingMemory {
	traits, _ := json.Marshal(m.Traits)
	return &WorkingMemory{
		ResourceOwner: resourceOwner,
		Name:          m.Name,
		Traits:        datatypes.JSON(traits),
		AnythingElse:  m.AnythingElse,
	}
}
