package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/thread"
	"openchat/server/internal/infrastructure/metrics"
	"openchat/server/internal/infrastructure/queue"
)

// Pool manages the title backfill workers.
type Pool struct {
	workers      []*Worker
	queue        queue.TaskQueue
	threads      *thread.Service
	titler       *chat.Titler
	workerCount  int
	taskTimeout  time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
	wg           sync.WaitGroup
	stopChan     chan struct{}
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount  int
	TaskTimeout  time.Duration
	PollInterval time.Duration
}

// NewPool creates a new worker pool.
func NewPool(
	q queue.TaskQueue,
	threads *thread.Service,
	titler *chat.Titler,
	cfg Config,
	log zerolog.Logger,
) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 45 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Pool{
		queue:        q,
		threads:      threads,
		titler:       titler,
		workerCount:  cfg.WorkerCount,
		taskTimeout:  cfg.TaskTimeout,
		pollInterval: cfg.PollInterval,
		log:          log.With().Str("component", "worker-pool").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start initializes and starts all workers.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("worker_count", p.workerCount).Msg("starting worker pool")

	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		w := NewWorker(i+1, p.queue, p.threads, p.titler, p.taskTimeout, p.pollInterval, p.log)
		p.workers[i] = w

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(w)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportQueueDepth(ctx)
	}()
}

func (p *Pool) reportQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			depth, err := p.queue.Depth(ctx)
			if err != nil {
				p.log.Warn().Err(err).Msg("failed to read queue depth")
				continue
			}
			metrics.QueueDepth.Set(float64(depth))
		}
	}
}

// Stop gracefully shuts down all workers.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool")

	close(p.stopChan)
	for _, w := range p.workers {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped")
	case <-time.After(30 * time.Second):
		p.log.Warn().Msg("worker pool shutdown timed out")
	}
}

// QueueDepth returns the current backlog size.
func (p *Pool) QueueDepth(ctx context.Context) (int64, error) {
	return p.queue.Depth(ctx)
}
