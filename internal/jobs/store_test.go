package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(fixedClock{t: at}, 0)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, Job{ID: "job-1", URL: "https://example.com"}))
	require.ErrorIs(t, store.Create(ctx, Job{ID: "job-1"}), ErrExists)

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, StatusQueued, job.Status)
	require.Equal(t, at, job.Submitted)

	require.NoError(t, store.MarkRunning(ctx, "job-1"))
	n := note.Note{UID: "u1", Title: "Example", Link: "https://example.com", Tags: []string{"a"}}
	require.NoError(t, store.Finish(ctx, "job-1", Outcome{Note: &n}))
	n.Tags[0] = "mutated"

	job, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, job.Status)
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
	require.Equal(t, []string{"a"}, job.Note.Tags)

	require.Error(t, store.MarkRunning(ctx, "job-1"))
	require.Error(t, store.Finish(ctx, "job-1", Outcome{}))
}

func TestMemoryStoreFailure(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil, 0)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, Job{ID: "job-2"}))
	require.NoError(t, store.Finish(ctx, "job-2", Outcome{Err: errors.New("navigate failed")}))

	job, err := store.Get(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, job.Status)
	require.Equal(t, "navigate failed", job.Error)
	require.Nil(t, job.Note)
}

func TestMemoryStoreUnknownJob(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil, 0)
	ctx := context.Background()
	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.MarkRunning(ctx, "missing"), ErrNotFound)
	require.ErrorIs(t, store.Finish(ctx, "missing", Outcome{}), ErrNotFound)

	var verr *note.ValidationError
	require.ErrorAs(t, store.Create(ctx, Job{}), &verr)
}

func TestMemoryStoreEvictsOldestFinished(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(nil, 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, Job{ID: id}))
		require.NoError(t, store.Finish(ctx, id, Outcome{}))
	}
	require.NoError(t, store.Create(ctx, Job{ID: "queued"}))

	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	for _, id := range []string{"b", "c", "queued"} {
		_, err := store.Get(ctx, id)
		require.NoError(t, err)
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, StatusQueued.Terminal())
	require.False(t, StatusRunning.Terminal())
	require.True(t, StatusSucceeded.Terminal())
	require.True(t, StatusFailed.Terminal())
}
