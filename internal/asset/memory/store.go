// Package memory keeps screenshots in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/cornell-notes/internal/asset"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Store is a thread-safe in-memory AssetStore.
type Store struct {
	mu       sync.RWMutex
	urls     asset.URLBuilder
	data     map[string][]byte
	versions map[string]int64

	// FailUpload and FailDelete inject backend failures.
	FailUpload error
	FailDelete error
}

// NewStore creates an empty in-memory asset store.
func NewStore(urls asset.URLBuilder) *Store {
	return &Store{
		urls:     urls,
		data:     make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// Upload stores a copy of data and bumps the object's version.
func (s *Store) Upload(_ context.Context, data []byte, id string, folder string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", &note.AssetStoreError{Op: "upload", Err: fmt.Errorf("id is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpload != nil {
		return "", &note.AssetStoreError{Op: "upload", ID: id, Err: s.FailUpload}
	}
	key := s.urls.ObjectKey(folder, id)
	s.data[key] = append([]byte(nil), data...)
	s.versions[key]++
	return s.urls.Canonical(folder, id, s.versions[key]), nil
}

// Delete drops the object for id. A missing object is not an error.
func (s *Store) Delete(_ context.Context, id string, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return &note.AssetStoreError{Op: "delete", ID: id, Err: s.FailDelete}
	}
	key := s.urls.ObjectKey(folder, id)
	delete(s.data, key)
	delete(s.versions, key)
	return nil
}

// Transform builds the rendition URL for width.
func (s *Store) Transform(_ context.Context, canonicalOrID string, width int) (string, error) {
	rendition, err := s.urls.Transform(canonicalOrID, width)
	if err != nil {
		return "", &note.AssetStoreError{Op: "transform", ID: asset.PublicID(canonicalOrID), Err: err}
	}
	return rendition, nil
}

// Get returns a copy of the stored bytes for id.
func (s *Store) Get(id, folder string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[s.urls.ObjectKey(folder, id)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
