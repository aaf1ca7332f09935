// Package jobs tracks asynchronous capture requests from submission to result.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Status is the lifecycle state of a capture job.
type Status string

// Job status values.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrNotFound is returned when no job matches the requested id.
var ErrNotFound = errors.New("job not found")

// ErrExists is returned when a job id is submitted twice.
var ErrExists = errors.New("job already exists")

// ErrQueueClosed is returned by a Queue once it has been shut down.
var ErrQueueClosed = errors.New("queue closed")

// ErrQueueFull is returned when a submission finds no queue capacity left.
var ErrQueueFull = errors.New("queue full")

// Job is one submitted URL and, once finished, its outcome.
type Job struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Viewport  note.Viewport `json:"viewport"`
	Status    Status        `json:"status"`
	Submitted time.Time     `json:"submitted_at"`
	Started   *time.Time    `json:"started_at,omitempty"`
	Finished  *time.Time    `json:"finished_at,omitempty"`
	Error     string        `json:"error,omitempty"`
	Note      *note.Note    `json:"note,omitempty"`
}

// Item is the unit of work carried on the queue.
type Item struct {
	JobID    string
	URL      string
	Viewport note.Viewport
}

// Queue moves items from the API to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	Dequeue(ctx context.Context) (Item, error)
	Close()
}

// Outcome is the terminal result recorded for a job.
type Outcome struct {
	Note *note.Note
	Err  error
}

// Store persists job state.
type Store interface {
	Create(ctx context.Context, job Job) error
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, outcome Outcome) error
	Get(ctx context.Context, id string) (Job, error)
}
