// Package dispatcher accepts capture submissions and fans queued work out to workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/jobs"
	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/worker"
)

// tryEnqueuer is implemented by queues that can refuse work instead of blocking.
type tryEnqueuer interface {
	TryEnqueue(item jobs.Item) error
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   jobs.Queue
	store   jobs.Store
	ids     note.IDGenerator
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue jobs.Queue, store jobs.Store, ids note.IDGenerator, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		store:   store,
		ids:     ids,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit validates rawURL, records a queued job and enqueues it. A full queue fails the job
// immediately with jobs.ErrQueueFull.
func (d *Dispatcher) Submit(ctx context.Context, rawURL string, viewport note.Viewport) (jobs.Job, error) {
	if _, err := note.ValidateLink(rawURL); err != nil {
		return jobs.Job{}, err
	}
	id, err := d.ids.NewID()
	if err != nil {
		return jobs.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := jobs.Job{ID: id, URL: rawURL, Viewport: viewport}
	if err := d.store.Create(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("create job: %w", err)
	}
	if err := d.Enqueue(ctx, jobs.Item{JobID: id, URL: rawURL, Viewport: viewport}); err != nil {
		if ferr := d.store.Finish(context.WithoutCancel(ctx), id, jobs.Outcome{Err: err}); ferr != nil {
			d.logger.Error("fail unqueued job", zap.String("job_id", id), zap.Error(ferr))
		}
		metrics.ObserveJob(string(jobs.StatusFailed))
		return jobs.Job{}, err
	}
	metrics.ObserveJob(string(jobs.StatusQueued))
	d.logger.Debug("job queued", zap.String("job_id", id), zap.String("url", rawURL))
	return d.store.Get(ctx, id)
}

// Job returns the current state of a submitted job.
func (d *Dispatcher) Job(ctx context.Context, id string) (jobs.Job, error) {
	return d.store.Get(ctx, id)
}

// Enqueue proxies to the underlying queue, preferring a non-blocking push when available.
func (d *Dispatcher) Enqueue(ctx context.Context, item jobs.Item) error {
	if tq, ok := d.queue.(tryEnqueuer); ok {
		if err := tq.TryEnqueue(item); err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				return err
			}
			return fmt.Errorf("queue enqueue: %w", err)
		}
		return nil
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
