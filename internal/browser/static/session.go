// Package static extracts page metadata with a plain HTTP fetch. It never produces a screenshot.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Session implements note.Browser using the Colly collector.
type Session struct {
	cfg  Config
	base *colly.Collector
}

// New builds a static Session.
func New(cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Session{cfg: cfg, base: c}
}

type pageMeta struct {
	mu        sync.Mutex
	finalURL  string
	title     string
	iconHref  string
	metaImage string
	err       error
}

func (m *pageMeta) setOnce(dst *string, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *dst == "" {
		*dst = strings.TrimSpace(value)
	}
}

// Capture fetches rawURL once and extracts its title and icon. The viewport is ignored.
func (s *Session) Capture(ctx context.Context, rawURL string, _ note.Viewport) (note.PageCapture, error) {
	meta := &pageMeta{}
	collector := s.base.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		meta.mu.Lock()
		meta.finalURL = r.Request.URL.String()
		meta.mu.Unlock()
	})
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		meta.setOnce(&meta.title, e.Text)
	})
	collector.OnHTML("link[rel~='icon']", func(e *colly.HTMLElement) {
		if href := strings.TrimSpace(e.Attr("href")); href != "" {
			meta.setOnce(&meta.iconHref, e.Request.AbsoluteURL(href))
		}
	})
	collector.OnHTML("meta[itemprop='image']", func(e *colly.HTMLElement) {
		meta.setOnce(&meta.metaImage, e.Attr("content"))
	})
	collector.OnError(func(_ *colly.Response, err error) {
		meta.mu.Lock()
		meta.err = err
		meta.mu.Unlock()
	})

	if err := run(ctx, collector, rawURL, meta); err != nil {
		return note.PageCapture{}, &note.NavigationError{URL: rawURL, Err: err}
	}

	meta.mu.Lock()
	defer meta.mu.Unlock()
	pageURL := meta.finalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	return note.PageCapture{
		URL:     pageURL,
		Title:   meta.title,
		IconURL: note.ResolveIcon(pageURL, meta.iconHref, meta.metaImage),
	}, nil
}

func run(ctx context.Context, collector *colly.Collector, rawURL string, meta *pageMeta) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		meta.mu.Lock()
		defer meta.mu.Unlock()
		if meta.err != nil {
			return fmt.Errorf("colly response failed: %w", meta.err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
