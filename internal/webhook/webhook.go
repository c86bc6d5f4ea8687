package webhook

import (
	"context"
	"time"
)

// Service delivers notifications about chat activity to a configured
// webhook URL.
type Service interface {
	// NotifyTurnCompleted sends a notification when a chat turn finishes.
	NotifyTurnCompleted(ctx context.Context, threadID string, messageCount int, completedAt time.Time) error
}

// Payload is the structure sent to webhook URLs.
type Payload struct {
	Event        string `json:"event"` // "turn.completed"
	ThreadID     string `json:"threadId"`
	MessageCount int    `json:"messageCount"`
	CompletedAt  string `json:"completedAt"`
}
