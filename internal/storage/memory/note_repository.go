// Package memory keeps notes in-memory for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

var errDuplicate = errors.New("duplicate uid")

// NoteRepository is a thread-safe in-memory note.Repository preserving insertion order.
type NoteRepository struct {
	mu    sync.RWMutex
	notes []note.Note
	index map[string]int
}

// NewNoteRepository constructs an empty repository.
func NewNoteRepository() *NoteRepository {
	return &NoteRepository{index: make(map[string]int)}
}

// List returns copies of the stored notes, optionally one page of them.
func (r *NoteRepository) List(_ context.Context, opts note.ListOptions) ([]note.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start, end := 0, len(r.notes)
	if opts.Limited {
		if opts.PageSize <= 0 || opts.Page < 0 {
			return nil, &note.ValidationError{Field: "page", Reason: "page must be >= 0 and page_size > 0"}
		}
		start = min(opts.Offset(), len(r.notes))
		end = min(start+opts.PageSize, len(r.notes))
	}
	out := make([]note.Note, 0, end-start)
	for _, n := range r.notes[start:end] {
		out = append(out, n.Clone())
	}
	return out, nil
}

// Insert appends a note. Duplicate uids are rejected.
func (r *NoteRepository) Insert(_ context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[n.UID]; exists {
		return &note.PersistenceError{Op: "insert", UID: n.UID, Err: errDuplicate}
	}
	r.index[n.UID] = len(r.notes)
	r.notes = append(r.notes, n.Clone())
	return nil
}

// Update replaces the stored note with the same uid.
func (r *NoteRepository) Update(_ context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[n.UID]
	if !ok {
		return &note.PersistenceError{Op: "update", UID: n.UID, Err: note.ErrNotFound}
	}
	r.notes[i] = n.Clone()
	return nil
}

// Delete removes the note with uid.
func (r *NoteRepository) Delete(_ context.Context, uid string) error {
	if uid == "" {
		return &note.ValidationError{Field: "uid", Reason: "is required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[uid]
	if !ok {
		return &note.PersistenceError{Op: "delete", UID: uid, Err: note.ErrNotFound}
	}
	r.notes = append(r.notes[:i], r.notes[i+1:]...)
	delete(r.index, uid)
	for j := i; j < len(r.notes); j++ {
		r.index[r.notes[j].UID] = j
	}
	return nil
}

// Ping always succeeds.
func (r *NoteRepository) Ping(context.Context) error { return nil }

// Close is a no-op.
func (r *NoteRepository) Close() {}
