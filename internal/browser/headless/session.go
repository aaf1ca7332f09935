// Package headless captures pages with an isolated headless Chrome per request.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultNetworkIdle       = 500 * time.Millisecond
	screenshotQuality        = 100
)

const (
	titleScript    = `document.title`
	iconLinkScript = `(() => { const el = document.querySelector("link[rel~='icon']"); return el ? (el.href || "") : ""; })()`
	metaImgScript  = `(() => { const el = document.querySelector("meta[itemprop='image']"); return el ? (el.getAttribute("content") || "") : ""; })()`
)

// Config controls the behavior of the headless session.
type Config struct {
	MaxParallel int
	UserAgent   string
	// NavigationTimeout bounds navigation plus the network idle wait. Zero disables it.
	NavigationTimeout time.Duration
	NetworkIdle       time.Duration
	ExecPath          string
	NoSandbox         bool
}

// tab is the set of browser operations a capture performs.
type tab interface {
	Navigate(ctx context.Context, rawURL string, viewport note.Viewport) error
	WaitIdle(ctx context.Context, quiet time.Duration) error
	Loaded() bool
	Evaluate(ctx context.Context, script string) (string, error)
	Location(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// launcher starts an isolated browser and returns its tab context, the tab, and a release func.
type launcher func(ctx context.Context) (context.Context, tab, func(), error)

// Session implements note.Browser using chromedp.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	limiter chan struct{}
	launch  launcher
	active  atomic.Int64
}

// New creates a headless session. Each Capture launches its own browser process.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout < 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.NetworkIdle <= 0 {
		cfg.NetworkIdle = defaultNetworkIdle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{cfg: cfg, logger: logger}
	if cfg.MaxParallel > 0 {
		s.limiter = make(chan struct{}, cfg.MaxParallel)
	}
	s.launch = s.launchChrome
	return s, nil
}

// Active reports the number of open browser sessions.
func (s *Session) Active() int64 {
	return s.active.Load()
}

// Capture loads rawURL in a fresh browser and extracts the title, icon, and a full-page screenshot.
func (s *Session) Capture(ctx context.Context, rawURL string, viewport note.Viewport) (note.PageCapture, error) {
	if err := s.acquire(ctx); err != nil {
		return note.PageCapture{}, &note.NavigationError{URL: rawURL, Err: err}
	}
	defer s.release()

	tabCtx, t, closeTab, err := s.launch(ctx)
	if err != nil {
		return note.PageCapture{}, &note.NavigationError{URL: rawURL, Err: err}
	}
	s.active.Add(1)
	metrics.IncBrowserSessions()
	defer func() {
		closeTab()
		s.active.Add(-1)
		metrics.DecBrowserSessions()
	}()

	if err := s.navigate(tabCtx, t, rawURL, viewport.OrDefault()); err != nil {
		return note.PageCapture{}, &note.NavigationError{URL: rawURL, Err: err}
	}

	pageURL := rawURL
	if loc, locErr := t.Location(tabCtx); locErr == nil && loc != "" {
		pageURL = loc
	}
	title := s.extract(tabCtx, t, rawURL, "title", titleScript)
	icon := note.ResolveIcon(pageURL,
		s.extract(tabCtx, t, rawURL, "icon link", iconLinkScript),
		s.extract(tabCtx, t, rawURL, "meta image", metaImgScript),
	)

	shot, err := t.Screenshot(tabCtx)
	if err != nil {
		s.logger.Warn("screenshot failed; returning page without screenshot",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		shot = nil
	}

	return note.PageCapture{
		URL:        pageURL,
		Title:      title,
		IconURL:    icon,
		Screenshot: shot,
	}, nil
}

// navigate loads the page and waits for network idle. A page whose load event fired is
// accepted even when the network never settles before the timeout.
func (s *Session) navigate(tabCtx context.Context, t tab, rawURL string, viewport note.Viewport) error {
	navCtx := tabCtx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	err := t.Navigate(navCtx, rawURL, viewport)
	if err == nil {
		err = t.WaitIdle(navCtx, s.cfg.NetworkIdle)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && t.Loaded() && tabCtx.Err() == nil {
		s.logger.Debug("network never went idle; continuing with loaded page", zap.String("url", rawURL))
		return nil
	}
	return err
}

// extract evaluates script and absorbs failures as an extraction miss.
func (s *Session) extract(ctx context.Context, t tab, rawURL, field, script string) string {
	value, err := t.Evaluate(ctx, script)
	if err != nil {
		s.logger.Debug("metadata extraction missed",
			zap.String("url", rawURL),
			zap.String("field", field),
			zap.Error(errors.Join(note.ErrExtractionMiss, err)),
		)
		return ""
	}
	return value
}

func (s *Session) acquire(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	select {
	case s.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (s *Session) release() {
	if s.limiter == nil {
		return
	}
	select {
	case <-s.limiter:
	default:
	}
}

func (s *Session) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	if s.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecPath))
	}
	if s.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

func (s *Session) launchChrome(ctx context.Context) (context.Context, tab, func(), error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	closeFn := func() {
		tabCancel()
		allocCancel()
	}

	idle := newIdleTracker(time.Now)
	chromedp.ListenTarget(tabCtx, idle.handle)

	// The first Run starts the browser; later timeouts then cancel actions, not the tab.
	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return tabCtx, &chromeTab{idle: idle}, closeFn, nil
}

type chromeTab struct {
	idle *idleTracker
}

func (c *chromeTab) Navigate(ctx context.Context, rawURL string, viewport note.Viewport) error {
	err := chromedp.Run(ctx,
		emulation.SetDeviceMetricsOverride(viewport.Width, viewport.Height, 1, false),
		chromedp.Navigate(rawURL),
	)
	if err != nil {
		return fmt.Errorf("chromedp navigate: %w", err)
	}
	return nil
}

func (c *chromeTab) WaitIdle(ctx context.Context, quiet time.Duration) error {
	return c.idle.Wait(ctx, quiet)
}

func (c *chromeTab) Loaded() bool {
	return c.idle.Loaded()
}

func (c *chromeTab) Evaluate(ctx context.Context, script string) (string, error) {
	var out string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return out, nil
}

func (c *chromeTab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return loc, nil
}

func (c *chromeTab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, fmt.Errorf("full screenshot: %w", err)
	}
	return buf, nil
}
