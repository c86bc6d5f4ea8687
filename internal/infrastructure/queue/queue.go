package queue

import (
	"context"
	"time"
)

// Task is one pending title-generation retry.
type Task struct {
	ID       uint
	ThreadID string
	TurnText string
	Attempts int
	QueuedAt time.Time
}

// TaskQueue defines the interface for the title backfill queue.
type TaskQueue interface {
	// Enqueue adds a task to the queue.
	Enqueue(ctx context.Context, threadID, turnText string) error

	// Dequeue fetches and claims the next available task, or nil when the
	// queue is empty.
	Dequeue(ctx context.Context) (*Task, error)

	// MarkCompleted updates task status to completed.
	MarkCompleted(ctx context.Context, taskID uint) error

	// MarkFailed updates task status to failed, recording the error. Tasks
	// under the attempt limit return to queued for another try.
	MarkFailed(ctx context.Context, taskID uint, err error) error

	// Depth returns the number of queued tasks.
	Depth(ctx context.Context) (int64, error)
}
