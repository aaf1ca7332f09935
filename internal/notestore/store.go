// Package notestore keeps an ordered local copy of notes in step with a Backend.
// Local state changes only after the backend confirms each mutation.
package notestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/cornell-notes/internal/controllable"
	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/service"
)

// Backend is the remote side of the store. *service.Service implements it.
type Backend interface {
	List(ctx context.Context, opts note.ListOptions) ([]note.Note, error)
	Capture(ctx context.Context, rawURL string, viewport note.Viewport) (note.Note, error)
	Update(ctx context.Context, n note.Note) (note.Note, error)
	Delete(ctx context.Context, uid string) error
	RemoveTag(ctx context.Context, notes []note.Note, tag string) ([]note.Note, error)
}

// Store is safe for concurrent use. Mutations of the same uid are serialized.
type Store struct {
	backend Backend

	mu    sync.RWMutex
	notes []note.Note

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	selected *controllable.Value[string]
}

// New creates an empty Store over backend.
func New(backend Backend) *Store {
	return &Store{
		backend:  backend,
		locks:    make(map[string]*sync.Mutex),
		selected: controllable.New("", nil),
	}
}

// Load replaces the local copy with the backend's full list.
func (s *Store) Load(ctx context.Context) error {
	notes, err := s.backend.List(ctx, note.ListOptions{})
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = cloneAll(notes)
	return nil
}

// Notes returns a copy of the local notes in order.
func (s *Store) Notes() []note.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.notes)
}

// Get returns the local note with uid.
func (s *Store) Get(uid string) (note.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(uid); i >= 0 {
		return s.notes[i].Clone(), true
	}
	return note.Note{}, false
}

// Vocabulary derives the tag set from the local notes.
func (s *Store) Vocabulary() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return note.Vocabulary(s.notes)
}

// Capture asks the backend to capture rawURL and appends the saved note.
func (s *Store) Capture(ctx context.Context, rawURL string, viewport note.Viewport) (note.Note, error) {
	n, err := s.backend.Capture(ctx, rawURL, viewport)
	if err != nil {
		return note.Note{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n.Clone())
	return n, nil
}

// Update saves n and replaces the local copy once the backend accepts it.
func (s *Store) Update(ctx context.Context, n note.Note) (note.Note, error) {
	unlock := s.lock(n.UID)
	defer unlock()
	return s.updateLocked(ctx, n)
}

// ToggleTag adds or removes tag on the note with uid.
func (s *Store) ToggleTag(ctx context.Context, uid, tag string) (note.Note, error) {
	unlock := s.lock(uid)
	defer unlock()
	current, ok := s.Get(uid)
	if !ok {
		return note.Note{}, fmt.Errorf("toggle tag on %s: %w", uid, note.ErrNotFound)
	}
	current.Tags = note.ToggleTag(current.Tags, tag)
	return s.updateLocked(ctx, current)
}

func (s *Store) updateLocked(ctx context.Context, n note.Note) (note.Note, error) {
	saved, err := s.backend.Update(ctx, n)
	if err != nil {
		return note.Note{}, err
	}
	s.replace(saved)
	return saved, nil
}

// Delete removes the note. A delete that left an orphaned asset still removes it locally.
func (s *Store) Delete(ctx context.Context, uid string) error {
	unlock := s.lock(uid)
	defer unlock()

	err := s.backend.Delete(ctx, uid)
	var orphan *service.OrphanedAssetError
	if err != nil && !errors.As(err, &orphan) {
		return err
	}
	s.mu.Lock()
	if i := s.indexLocked(uid); i >= 0 {
		s.notes = append(s.notes[:i], s.notes[i+1:]...)
	}
	s.mu.Unlock()
	if s.selected.Get() == uid {
		s.selected.Set("")
	}
	return err
}

// RemoveTag removes tag from every local note carrying it. Notes the backend updated are
// replaced; notes it failed on keep the tag and are reported in the returned error.
func (s *Store) RemoveTag(ctx context.Context, tag string) error {
	snapshot := s.Notes()
	var uids []string
	for _, n := range snapshot {
		if n.HasTag(tag) {
			uids = append(uids, n.UID)
		}
	}
	sort.Strings(uids)
	for _, uid := range uids {
		unlock := s.lock(uid)
		defer unlock()
	}

	updated, err := s.backend.RemoveTag(ctx, s.Notes(), tag)
	for _, n := range updated {
		s.replace(n)
	}
	return err
}

// Select marks uid as the note being viewed.
func (s *Store) Select(uid string) {
	s.selected.Set(uid)
}

// Selection exposes the selected uid for callers that own it.
func (s *Store) Selection() *controllable.Value[string] {
	return s.selected
}

// Selected returns the selected note, if it is still present.
func (s *Store) Selected() (note.Note, bool) {
	uid := s.selected.Get()
	if uid == "" {
		return note.Note{}, false
	}
	return s.Get(uid)
}

func (s *Store) replace(n note.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(n.UID); i >= 0 {
		s.notes[i] = n.Clone()
	}
}

func (s *Store) indexLocked(uid string) int {
	for i := range s.notes {
		if s.notes[i].UID == uid {
			return i
		}
	}
	return -1
}

func (s *Store) lock(uid string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[uid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[uid] = l
	}
	s.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

func cloneAll(notes []note.Note) []note.Note {
	out := make([]note.Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Clone())
	}
	return out
}
