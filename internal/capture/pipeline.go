// Package capture turns a URL into an unsaved Note: browser capture, then screenshot upload.
package capture

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

// maxTitleLen matches the width of the title column.
const maxTitleLen = 255

// Config controls where screenshots are stored.
type Config struct {
	// Folder is the asset folder screenshots are uploaded into.
	Folder string
	// Mode labels capture metrics ("headless" or "static").
	Mode string
}

// Pipeline captures a page and uploads its screenshot.
type Pipeline struct {
	browser note.Browser
	assets  note.AssetStore
	logger  *zap.Logger
	cfg     Config
}

// New wires a Pipeline.
func New(browser note.Browser, assets note.AssetStore, logger *zap.Logger, cfg Config) (*Pipeline, error) {
	if browser == nil {
		return nil, fmt.Errorf("browser is required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = "headless"
	}
	return &Pipeline{browser: browser, assets: assets, logger: logger, cfg: cfg}, nil
}

// Folder returns the asset folder this pipeline uploads into.
func (p *Pipeline) Folder() string {
	return p.cfg.Folder
}

// CaptureURL loads rawURL and returns a Note keyed by uid. The Note is not persisted.
// A failed upload yields a Note without a screenshot; navigation failures abort.
func (p *Pipeline) CaptureURL(ctx context.Context, rawURL, uid string, viewport note.Viewport) (note.Note, error) {
	link, err := note.ValidateLink(rawURL)
	if err != nil {
		return note.Note{}, err
	}
	if strings.TrimSpace(uid) == "" {
		return note.Note{}, &note.ValidationError{Field: "uid", Reason: "is required"}
	}
	target := link.String()
	logger := p.logger.With(zap.String("uid", uid), zap.String("url", target))
	start := time.Now()

	page, err := p.browser.Capture(ctx, target, viewport)
	if err != nil {
		logger.Warn("page capture failed", zap.Error(err))
		metrics.ObserveCapture(target, "failed", p.cfg.Mode, time.Since(start))
		if note.IsNavigation(err) {
			return note.Note{}, err
		}
		return note.Note{}, &note.NavigationError{URL: target, Err: err}
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = note.HostTitle(target)
	}

	outcome := "succeeded"
	var screenshot string
	if len(page.Screenshot) > 0 {
		uri, uploadErr := p.assets.Upload(ctx, page.Screenshot, uid, p.cfg.Folder)
		metrics.ObserveAssetOperation("upload", uploadErr)
		if uploadErr != nil {
			outcome = "degraded"
			logger.Warn("screenshot upload failed; saving note without screenshot", zap.Error(uploadErr))
		} else {
			screenshot = uri
		}
	}
	metrics.ObserveCapture(target, outcome, p.cfg.Mode, time.Since(start))
	logger.Info("page captured",
		zap.String("outcome", outcome),
		zap.Int("screenshot_bytes", len(page.Screenshot)),
		zap.Duration("duration", time.Since(start)),
	)

	return note.Note{
		UID:        uid,
		Title:      truncate(title, maxTitleLen),
		Link:       target,
		IconURL:    page.IconURL,
		Tags:       []string{},
		Screenshot: screenshot,
	}, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
