package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

// MemoryStore keeps jobs in process memory. Finished jobs beyond the retention cap are evicted
// oldest first.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]Job
	finished []string
	retain   int
	clock    note.Clock
}

// DefaultRetention bounds how many finished jobs are remembered.
const DefaultRetention = 1024

// NewMemoryStore constructs a MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(clock note.Clock, retain int) *MemoryStore {
	if retain <= 0 {
		retain = DefaultRetention
	}
	return &MemoryStore{
		jobs:   make(map[string]Job),
		retain: retain,
		clock:  clock,
	}
}

// Create stores a new job in queued status.
func (s *MemoryStore) Create(_ context.Context, job Job) error {
	if job.ID == "" {
		return &note.ValidationError{Field: "job_id", Reason: "is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: %w", job.ID, ErrExists)
	}
	job.Status = StatusQueued
	if job.Submitted.IsZero() {
		job.Submitted = s.now()
	}
	s.jobs[job.ID] = job
	return nil
}

// MarkRunning moves a queued job to running and stamps its start time.
func (s *MemoryStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("start job %s: %w", id, ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("start job %s: already %s", id, job.Status)
	}
	job.Status = StatusRunning
	if job.Started == nil {
		job.Started = pointerTime(s.now())
	}
	s.jobs[id] = job
	return nil
}

// Finish records the terminal outcome of a job.
func (s *MemoryStore) Finish(_ context.Context, id string, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("finish job %s: %w", id, ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("finish job %s: already %s", id, job.Status)
	}
	now := s.now()
	if job.Started == nil {
		job.Started = pointerTime(now)
	}
	job.Finished = pointerTime(now)
	if outcome.Err != nil {
		job.Status = StatusFailed
		job.Error = outcome.Err.Error()
	} else {
		job.Status = StatusSucceeded
		if outcome.Note != nil {
			cp := outcome.Note.Clone()
			job.Note = &cp
		}
	}
	s.jobs[id] = job
	s.finished = append(s.finished, id)
	s.evictLocked()
	return nil
}

// Get fetches a job by id.
func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	if job.Note != nil {
		cp := job.Note.Clone()
		job.Note = &cp
	}
	return job, nil
}

func (s *MemoryStore) evictLocked() {
	for len(s.finished) > s.retain {
		delete(s.jobs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *MemoryStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
