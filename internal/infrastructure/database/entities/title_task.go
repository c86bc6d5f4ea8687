package entities

import "time"

// TitleTask is a queued title-generation retry for a thread whose title did
// not land during the originating turn.
type TitleTask struct {
	ID        uint      `gorm:"primaryKey"`
	ThreadID  string    `gorm:"type:varchar(64);index;not null"`
	TurnText  string    `gorm:"type:text;not null"`
	Status    string    `gorm:"size:32;index;not null;default:'queued'"`
	Attempts  int       `gorm:"not null;default:0"`
	LastError *string   `gorm:"type:text"`
	QueuedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for TitleTask.
func (TitleTask) TableName() string {
	return "title_tasks"
}
