package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"openchat/server/internal/infrastructure/database/entities"
)

const maxAttempts = 3

// PostgresQueue implements TaskQueue on the title_tasks table.
type PostgresQueue struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPostgresQueue creates a new PostgreSQL-backed title task queue.
func NewPostgresQueue(db *gorm.DB, log zerolog.Logger) *PostgresQueue {
	return &PostgresQueue{
		db:  db,
		log: log.With().Str("component", "postgres-queue").Logger(),
	}
}

// Enqueue inserts a queued task for the thread.
func (q *PostgresQueue) Enqueue(ctx context.Context, threadID, turnText string) error {
	task := &entities.TitleTask{
		ThreadID: threadID,
		TurnText: turnText,
		Status:   "queued",
	}
	if err := q.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("enqueue title task: %w", err)
	}
	q.log.Debug().Str("thread_id", threadID).Msg("title task enqueued")
	return nil
}

// Dequeue claims the next queued task using FOR UPDATE SKIP LOCKED so
// concurrent workers never pick the same row.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*Task, error) {
	var entity entities.TitleTask

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Raw("SELECT * FROM title_tasks WHERE status = ? ORDER BY queued_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED", "queued").
			Scan(&entity).Error
		if err != nil {
			return err
		}
		if entity.ID == 0 {
			return nil
		}
		return tx.Model(&entities.TitleTask{}).
			Where("id = ?", entity.ID).
			Updates(map[string]interface{}{
				"status":     "in_progress",
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue title task: %w", err)
	}
	if entity.ID == 0 {
		return nil, nil // no tasks available
	}

	return &Task{
		ID:       entity.ID,
		ThreadID: entity.ThreadID,
		TurnText: entity.TurnText,
		Attempts: entity.Attempts + 1,
		QueuedAt: entity.QueuedAt,
	}, nil
}

// MarkCompleted updates the task status to completed.
func (q *PostgresQueue) MarkCompleted(ctx context.Context, taskID uint) error {
	result := q.db.WithContext(ctx).
		Model(&entities.TitleTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     "completed",
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("mark completed: %w", result.Error)
	}
	return nil
}

// MarkFailed records the failure. Tasks that still have attempts left go back
// to queued; exhausted tasks are parked as failed.
func (q *PostgresQueue) MarkFailed(ctx context.Context, taskID uint, taskErr error) error {
	status := "queued"
	var attempts int64
	err := q.db.WithContext(ctx).
		Model(&entities.TitleTask{}).
		Where("id = ?", taskID).
		Select("attempts").
		Scan(&attempts).Error
	if err != nil {
		return fmt.Errorf("load attempts: %w", err)
	}
	if attempts >= maxAttempts {
		status = "failed"
	}

	msg := taskErr.Error()
	result := q.db.WithContext(ctx).
		Model(&entities.TitleTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": &msg,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("mark failed: %w", result.Error)
	}
	return nil
}

// Depth returns the number of queued tasks.
func (q *PostgresQueue) Depth(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&entities.TitleTask{}).
		Where("status = ?", "queued").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("get queue depth: %w", err)
	}
	return count, nil
}
