// Package local implements a filesystem AssetStore for development.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/cornell-notes/internal/asset"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory where screenshots are written.
	BaseDir string `mapstructure:"base_dir"`
}

// Store writes screenshots below a base directory and reports CDN-shaped URLs for them.
type Store struct {
	baseDir string
	urls    asset.URLBuilder
}

// New creates a filesystem-backed asset store, creating BaseDir when needed.
func New(cfg Config, urls asset.URLBuilder) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir, urls: urls}, nil
}

// Path returns the file location for id within folder.
func (s *Store) Path(id, folder string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("id is required")
	}
	full := filepath.Clean(filepath.Join(s.baseDir, s.urls.ObjectKey(folder, id)))
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

// Upload writes data to <base>/<folder>/<id>.png, replacing any previous file.
func (s *Store) Upload(_ context.Context, data []byte, id string, folder string) (string, error) {
	full, err := s.Path(id, folder)
	if err != nil {
		return "", &note.AssetStoreError{Op: "upload", ID: id, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", &note.AssetStoreError{Op: "upload", ID: id, Err: fmt.Errorf("create parent directories: %w", err)}
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", &note.AssetStoreError{Op: "upload", ID: id, Err: fmt.Errorf("write file: %w", err)}
	}
	var version int64
	if info, statErr := os.Stat(full); statErr == nil {
		version = info.ModTime().Unix()
	}
	return s.urls.Canonical(folder, id, version), nil
}

// Delete removes the file for id. A missing file is not an error.
func (s *Store) Delete(_ context.Context, id string, folder string) error {
	full, err := s.Path(id, folder)
	if err != nil {
		return &note.AssetStoreError{Op: "delete", ID: id, Err: err}
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &note.AssetStoreError{Op: "delete", ID: id, Err: fmt.Errorf("remove file: %w", err)}
	}
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

// ServeHTTP serves stored screenshots for paths below the upload prefix, ending in
// <folder>/<id>[.<ext>]. Version and transform segments are ignored, so renditions get the
// original image.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) < 2 {
		http.NotFound(w, r)
		return
	}
	folder := segments[len(segments)-2]
	full, err := s.Path(asset.PublicID(segments[len(segments)-1]), folder)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(full); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}
