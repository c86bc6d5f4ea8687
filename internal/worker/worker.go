package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/thread"
	"openchat/server/internal/infrastructure/metrics"
	"openchat/server/internal/infrastructure/queue"
)

// Worker drains the title backfill queue: threads whose title generation did
// not finish during the originating turn get retried here.
type Worker struct {
	id           int
	queue        queue.TaskQueue
	threads      *thread.Service
	titler       *chat.Titler
	taskTimeout  time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
	stopChan     chan struct{}
}

// NewWorker creates a new background worker.
func NewWorker(
	id int,
	q queue.TaskQueue,
	threads *thread.Service,
	titler *chat.Titler,
	taskTimeout time.Duration,
	pollInterval time.Duration,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		threads:      threads,
		titler:       titler,
		taskTimeout:  taskTimeout,
		pollInterval: pollInterval,
		log:          log.With().Int("worker_id", id).Str("component", "title-worker").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start begins polling the queue. Blocks until the context is cancelled or
// Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Msg("worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			w.processNextTask(ctx)
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.stopChan)
}

func (w *Worker) processNextTask(ctx context.Context) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to dequeue task")
		return
	}
	if task == nil {
		return
	}

	w.log.Info().
		Str("thread_id", task.ThreadID).
		Int("attempts", task.Attempts).
		Msg("processing title backfill task")

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	if err := w.backfillTitle(taskCtx, task); err != nil {
		metrics.RecordTitleGeneration("backfill", "error")
		w.log.Error().Err(err).Str("thread_id", task.ThreadID).Msg("title backfill failed")
		if markErr := w.queue.MarkFailed(ctx, task.ID, err); markErr != nil {
			w.log.Error().Err(markErr).Uint("task_id", task.ID).Msg("failed to mark task as failed")
		}
		return
	}

	metrics.RecordTitleGeneration("backfill", "ok")
	if err := w.queue.MarkCompleted(ctx, task.ID); err != nil {
		w.log.Error().Err(err).Uint("task_id", task.ID).Msg("failed to mark task as completed")
		return
	}
	w.log.Info().Str("thread_id", task.ThreadID).Msg("title backfilled")
}

func (w *Worker) backfillTitle(ctx context.Context, task *queue.Task) error {
	t, err := w.threads.Get(ctx, task.ThreadID)
	if err != nil {
		return err
	}
	// The in-turn title pipeline may have finished after the handoff, or the
	// thread may be gone; either way there is nothing to do.
	if t.Title != nil && *t.Title != thread.PlaceholderTitle {
		return nil
	}

	title, err := w.titler.Summarize(ctx, task.TurnText, nil)
	if err != nil {
		return err
	}
	return w.threads.SetTitle(ctx, task.ThreadID, title)
}
