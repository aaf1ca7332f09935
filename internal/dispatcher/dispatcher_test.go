package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/jobs"
	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/queue/memory"
	"github.com/JakeFAU/cornell-notes/internal/worker"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("job-%d", s.n), nil
}

type stubCapturer struct{}

func (stubCapturer) Capture(_ context.Context, rawURL string, _ note.Viewport) (note.Note, error) {
	return note.Note{UID: "n1", Title: "Example", Link: rawURL, Tags: []string{}}, nil
}

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	store := jobs.NewMemoryStore(nil, 0)
	w := worker.New(queue, store, stubCapturer{}, worker.Config{}, zap.NewNop())
	dispatch := New(queue, store, &seqIDs{}, []*worker.Worker{w}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func TestDispatcherSubmitRunsJob(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := memory.NewQueue(4)
	store := jobs.NewMemoryStore(nil, 0)
	w := worker.New(queue, store, stubCapturer{}, worker.Config{}, zap.NewNop())
	dispatch := New(queue, store, &seqIDs{}, []*worker.Worker{w}, zap.NewNop())
	go dispatch.Run(ctx)

	job, err := dispatch.Submit(ctx, "https://example.com", note.Viewport{Width: 800})
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)

	require.Eventually(t, func() bool {
		got, err := dispatch.Job(ctx, job.ID)
		return err == nil && got.Status == jobs.StatusSucceeded && got.Note != nil
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcherSubmitRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	dispatch := New(memory.NewQueue(1), jobs.NewMemoryStore(nil, 0), &seqIDs{}, nil, nil)
	_, err := dispatch.Submit(context.Background(), "ftp://example.com", note.Viewport{})
	require.True(t, note.IsValidation(err))
}

func TestDispatcherSubmitFullQueueFailsJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := jobs.NewMemoryStore(nil, 0)
	dispatch := New(memory.NewQueue(1), store, &seqIDs{}, nil, nil)

	_, err := dispatch.Submit(ctx, "https://example.com/a", note.Viewport{})
	require.NoError(t, err)
	_, err = dispatch.Submit(ctx, "https://example.com/b", note.Viewport{})
	require.ErrorIs(t, err, jobs.ErrQueueFull)

	failed, err := store.Get(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, jobs.StatusFailed, failed.Status)
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, jobs.NewMemoryStore(nil, 0), &seqIDs{}, nil, nil)

	err := dispatch.Enqueue(context.Background(), jobs.Item{JobID: "job"})
	require.EqualError(t, err, "queue enqueue: boom")
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(context.Context, jobs.Item) error { return nil }

func (q *blockingQueue) Dequeue(ctx context.Context) (jobs.Item, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return jobs.Item{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

func (q *blockingQueue) Close() {}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, jobs.Item) error { return q.err }

func (q *errorQueue) Dequeue(context.Context) (jobs.Item, error) { return jobs.Item{}, nil }

func (q *errorQueue) Close() {}
