// Package service implements the note operations shared by the HTTP API, the CLI, and
// capture workers.
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

const defaultRemoveTagConcurrency = 8

// Capturer turns a URL into an unsaved note.
type Capturer interface {
	CaptureURL(ctx context.Context, rawURL, uid string, viewport note.Viewport) (note.Note, error)
}

// Pinger is implemented by repositories that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes the service.
type Config struct {
	// Folder is the asset folder screenshots live in.
	Folder string
	// Topic receives lifecycle events. Empty disables publishing.
	Topic string
	// RemoveTagConcurrency bounds concurrent updates during bulk tag removal.
	RemoveTagConcurrency int
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Pipeline  Capturer
	Repo      note.Repository
	Assets    note.AssetStore
	IDs       note.IDGenerator
	Publisher note.Publisher
	Clock     note.Clock
	Logger    *zap.Logger
}

// Service coordinates capture, persistence, and asset cleanup.
type Service struct {
	deps Deps
	cfg  Config
}

// New validates deps and builds a Service.
func New(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Pipeline == nil:
		return nil, fmt.Errorf("capture pipeline is required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("note repository is required")
	case deps.Assets == nil:
		return nil, fmt.Errorf("asset store is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.RemoveTagConcurrency <= 0 {
		cfg.RemoveTagConcurrency = defaultRemoveTagConcurrency
	}
	return &Service{deps: deps, cfg: cfg}, nil
}

// Ready reports whether the repository is reachable.
func (s *Service) Ready(ctx context.Context) error {
	if p, ok := s.deps.Repo.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("repository ping: %w", err)
		}
	}
	return nil
}

// Capture captures rawURL under a fresh uid and inserts the resulting note.
func (s *Service) Capture(ctx context.Context, rawURL string, viewport note.Viewport) (note.Note, error) {
	if _, err := note.ValidateLink(rawURL); err != nil {
		return note.Note{}, err
	}
	uid, err := s.deps.IDs.NewID()
	if err != nil {
		return note.Note{}, fmt.Errorf("generate uid: %w", err)
	}
	n, err := s.deps.Pipeline.CaptureURL(ctx, rawURL, uid, viewport)
	if err != nil {
		return note.Note{}, err
	}
	if err := s.deps.Repo.Insert(ctx, n); err != nil {
		s.deps.Logger.Error("insert captured note failed", zap.String("uid", uid), zap.String("url", n.Link), zap.Error(err))
		if n.Screenshot != "" {
			delErr := s.deps.Assets.Delete(ctx, uid, s.cfg.Folder)
			metrics.ObserveAssetOperation("delete", delErr)
			if delErr != nil {
				s.orphaned(ctx, n, delErr)
			}
		}
		return note.Note{}, err
	}
	s.publish(ctx, note.EventNoteCreated, n)
	return n, nil
}

// List returns stored notes in insertion order.
func (s *Service) List(ctx context.Context, opts note.ListOptions) ([]note.Note, error) {
	return s.deps.Repo.List(ctx, opts)
}

// Get finds one note by uid. The repository has no keyed read, so this scans the full list.
func (s *Service) Get(ctx context.Context, uid string) (note.Note, error) {
	notes, err := s.deps.Repo.List(ctx, note.ListOptions{})
	if err != nil {
		return note.Note{}, err
	}
	for _, n := range notes {
		if n.UID == uid {
			return n, nil
		}
	}
	return note.Note{}, fmt.Errorf("get note %s: %w", uid, note.ErrNotFound)
}

// Tags returns the tag vocabulary across all notes.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	notes, err := s.deps.Repo.List(ctx, note.ListOptions{})
	if err != nil {
		return nil, err
	}
	return note.Vocabulary(notes), nil
}

// Update validates n and rewrites its stored fields.
func (s *Service) Update(ctx context.Context, n note.Note) (note.Note, error) {
	n = n.Clone()
	n.Title = strings.TrimSpace(n.Title)
	n.Tags = note.NormalizeTags(n.Tags)
	if _, err := note.ValidateLink(n.Link); err != nil {
		return note.Note{}, err
	}
	if err := n.Validate(); err != nil {
		return note.Note{}, err
	}
	if err := s.deps.Repo.Update(ctx, n); err != nil {
		return note.Note{}, err
	}
	s.publish(ctx, note.EventNoteUpdated, n)
	return n, nil
}

// Delete removes the row for uid, then its screenshot. When only the row goes, the
// returned *OrphanedAssetError says so; the note is gone either way.
func (s *Service) Delete(ctx context.Context, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return &note.ValidationError{Field: "uid", Reason: "is required"}
	}
	if err := s.deps.Repo.Delete(ctx, uid); err != nil {
		return err
	}
	err := s.deps.Assets.Delete(ctx, uid, s.cfg.Folder)
	metrics.ObserveAssetOperation("delete", err)
	if err != nil {
		s.orphaned(ctx, note.Note{UID: uid}, err)
		return &OrphanedAssetError{UID: uid, Folder: s.cfg.Folder, Err: err}
	}
	s.publish(ctx, note.EventNoteDeleted, note.Note{UID: uid})
	return nil
}

// RemoveTag drops tag from every note in notes that carries it. Updates run concurrently
// and are not rolled back; the returned slice holds the notes that were updated, and a
// *TagRemovalError lists the ones that were not.
func (s *Service) RemoveTag(ctx context.Context, notes []note.Note, tag string) ([]note.Note, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, &note.ValidationError{Field: "tag", Reason: "is required"}
	}

	var targets []note.Note
	for _, n := range notes {
		if n.HasTag(tag) {
			targets = append(targets, n)
		}
	}

	results := make([]*note.Note, len(targets))
	failures := make([]*FailedNote, len(targets))
	var g errgroup.Group
	g.SetLimit(s.cfg.RemoveTagConcurrency)
	for i, n := range targets {
		g.Go(func() error {
			updated := n.Clone()
			updated.Tags = note.WithoutTag(n.Tags, tag)
			if err := s.deps.Repo.Update(ctx, updated); err != nil {
				failures[i] = &FailedNote{UID: n.UID, Title: n.Title, Err: err}
				return nil
			}
			results[i] = &updated
			return nil
		})
	}
	_ = g.Wait()

	updated := make([]note.Note, 0, len(targets))
	var failed []FailedNote
	for i := range targets {
		if results[i] != nil {
			updated = append(updated, *results[i])
			s.publish(ctx, note.EventNoteUpdated, *results[i])
		}
		if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}
	if len(failed) > 0 {
		metrics.AddTagRemovalFailures(len(failed))
		s.deps.Logger.Warn("bulk tag removal partially failed",
			zap.String("tag", tag),
			zap.Int("updated", len(updated)),
			zap.Int("failed", len(failed)),
		)
		return updated, &TagRemovalError{Tag: tag, Failed: failed}
	}
	return updated, nil
}

func (s *Service) orphaned(ctx context.Context, n note.Note, err error) {
	metrics.IncOrphanedAssets()
	s.deps.Logger.Warn("asset delete failed; reconciliation candidate",
		zap.String("uid", n.UID),
		zap.String("folder", s.cfg.Folder),
		zap.Error(err),
	)
	s.publish(ctx, note.EventAssetOrphaned, n)
}

func (s *Service) publish(ctx context.Context, eventType string, n note.Note) {
	if s.deps.Publisher == nil || s.cfg.Topic == "" {
		return
	}
	ev := note.Event{
		Type:      eventType,
		UID:       n.UID,
		Folder:    s.cfg.Folder,
		Link:      n.Link,
		Timestamp: s.deps.Clock.Now(),
	}
	if _, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, ev); err != nil {
		s.deps.Logger.Warn("publish event failed", zap.String("type", eventType), zap.String("uid", n.UID), zap.Error(err))
	}
}
