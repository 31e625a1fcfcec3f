package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"
	"github.com/wnt/walletpnl/internal/logger"
	"github.com/wnt/walletpnl/internal/metrics"
)

// Pool runs per-account tasks on a bounded number of workers. Submissions
// block once the queue is full.
type Pool struct {
	pool    pond.Pool
	workers int
	logger  zerolog.Logger
}

// NewPool creates a pool of workers with a queue of queueSize pending tasks
func NewPool(workers, queueSize int, baseLogger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	return &Pool{
		pool:    pond.NewPool(workers, pond.WithQueueSize(queueSize)),
		workers: workers,
		logger:  baseLogger.With().Str("component", "worker_pool").Logger(),
	}
}

// Workers returns the configured concurrency
func (p *Pool) Workers() int {
	return p.workers
}

// Process calls task once per item and waits for all of them. Tasks receive
// a context that is cancelled when ctx is. Items not yet started when ctx is
// cancelled are skipped.
func (p *Pool) Process(ctx context.Context, taskType string, items []string, task func(ctx context.Context, log zerolog.Logger, item string)) error {
	group := p.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	metrics.AccountsPending.Set(float64(len(items)))
	p.logger.Info().
		Int("items", len(items)).
		Int("workers", p.workers).
		Str("task_type", taskType).
		Msg("Dispatching tasks")

	for i, item := range items {
		workerID := fmt.Sprintf("%s-%d", taskType, i+1)
		group.Submit(func() {
			defer metrics.AccountsPending.Dec()
			if err := groupCtx.Err(); err != nil {
				return
			}

			metrics.WorkersActive.Inc()
			defer metrics.WorkersActive.Dec()

			start := time.Now()
			task(groupCtx, logger.WithWorker(p.logger, workerID), item)
			metrics.RecordWorkerTaskDuration(taskType, time.Since(start).Seconds())
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return fmt.Errorf("%s tasks failed: %w", taskType, err)
	}
	return ctx.Err()
}

// Stop waits for running tasks and releases the workers
func (p *Pool) Stop() {
	p.pool.StopAndWait()
	metrics.WorkersActive.Set(0)
}
