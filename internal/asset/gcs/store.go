// Package gcs provides an AssetStore backed by Google Cloud Storage behind a CDN.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/cornell-notes/internal/asset"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket       string
	ContentType  string
	CacheControl string
}

// Store uploads screenshots to a configured GCS bucket.
type Store struct {
	client *storage.Client
	cfg    Config
	urls   asset.URLBuilder
}

// New creates a GCS-backed asset store.
func New(client *storage.Client, cfg Config, urls asset.URLBuilder) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "image/png"
	}
	return &Store{
		client: client,
		cfg:    cfg,
		urls:   urls,
	}, nil
}

// Upload writes data under <folder>/<id>.png, overwriting any previous object with that id.
func (s *Store) Upload(ctx context.Context, data []byte, id string, folder string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", &note.AssetStoreError{Op: "upload", Err: fmt.Errorf("id is required")}
	}
	key := s.urls.ObjectKey(folder, id)
	writer := s.client.Bucket(s.cfg.Bucket).Object(key).NewWriter(ctx)
	writer.ContentType = s.cfg.ContentType
	if s.cfg.CacheControl != "" {
		writer.CacheControl = s.cfg.CacheControl
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", &note.AssetStoreError{Op: "upload", ID: id, Err: fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)}
		}
		return "", &note.AssetStoreError{Op: "upload", ID: id, Err: fmt.Errorf("copy object: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return "", &note.AssetStoreError{Op: "upload", ID: id, Err: fmt.Errorf("close writer: %w", err)}
	}
	var version int64
	if attrs := writer.Attrs(); attrs != nil {
		version = attrs.Generation
	}
	return s.urls.Canonical(folder, id, version), nil
}

// Delete removes the object for id. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, id string, folder string) error {
	key := s.urls.ObjectKey(folder, id)
	err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return &note.AssetStoreError{Op: "delete", ID: id, Err: fmt.Errorf("delete object %s: %w", key, err)}
}

// Transform builds the CDN rendition URL for width.
func (s *Store) Transform(_ context.Context, canonicalOrID string, width int) (string, error) {
	rendition, err := s.urls.Transform(canonicalOrID, width)
	if err != nil {
		return "", &note.AssetStoreError{Op: "transform", ID: asset.PublicID(canonicalOrID), Err: err}
	}
	return rendition, nil
}
