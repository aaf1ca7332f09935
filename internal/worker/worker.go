// Package worker executes queued capture jobs.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/jobs"
	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Capturer captures and persists one URL.
type Capturer interface {
	Capture(ctx context.Context, rawURL string, viewport note.Viewport) (note.Note, error)
}

// Config controls Worker behavior.
type Config struct {
	// CaptureTimeout bounds a single job; zero leaves it to the browser's own timeouts.
	CaptureTimeout time.Duration
}

// Worker consumes queue items and runs the capture for each.
type Worker struct {
	queue    jobs.Queue
	store    jobs.Store
	capturer Capturer
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(queue jobs.Queue, store jobs.Store, capturer Capturer, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		store:    store,
		capturer: capturer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, jobs.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item jobs.Item) {
	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("url", item.URL))
	if err := w.store.MarkRunning(ctx, item.JobID); err != nil {
		logger.Error("update job status failed", zap.Error(err))
		return
	}
	metrics.ObserveJob(string(jobs.StatusRunning))

	n, err := w.capture(ctx, item)
	outcome := jobs.Outcome{Err: err}
	status := jobs.StatusSucceeded
	if err != nil {
		status = jobs.StatusFailed
		logger.Warn("capture job failed", zap.Error(err))
	} else {
		outcome.Note = &n
		logger.Info("capture job succeeded", zap.String("uid", n.UID))
	}

	// The job record must reach a terminal state even when the run context was canceled.
	finishCtx := context.WithoutCancel(ctx)
	if err := w.store.Finish(finishCtx, item.JobID, outcome); err != nil {
		logger.Error("final job status update failed", zap.Error(err))
		return
	}
	metrics.ObserveJob(string(status))
}

func (w *Worker) capture(ctx context.Context, item jobs.Item) (note.Note, error) {
	if w.cfg.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.CaptureTimeout)
		defer cancel()
	}
	return w.capturer.Capture(ctx, item.URL, item.Viewport)
}
