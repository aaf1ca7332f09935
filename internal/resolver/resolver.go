// Package resolver maps a canonical screenshot URL to width-specific rendition URLs,
// debouncing bursts of layout changes so only the settled width is requested.
package resolver

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

// DefaultDebounce is the quiet period before a width is requested.
const DefaultDebounce = 500 * time.Millisecond

// Status is the display state of a rendition.
type Status int

// Rendition states.
const (
	StatusNoAsset Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNoAsset:
		return "no_asset"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is what a display surface should render. Err is set after a failed request,
// even when a previous rendition is still shown.
type State struct {
	Status Status
	URL    string
	Width  int
	Err    error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout bounds each Transform call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// Resolver tracks one display surface showing one canonical asset.
type Resolver struct {
	transformer note.Transformer
	canonical   string
	window      time.Duration
	timeout     time.Duration
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	cache     map[int]string
	state     State
	lastGood  string
	listeners []func(State)
	closed    bool
}

// New creates a Resolver for canonical. An empty canonical URL stays in StatusNoAsset
// and never calls the transformer.
func New(transformer note.Transformer, canonical string, opts ...Option) *Resolver {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		transformer: transformer,
		canonical:   canonical,
		window:      DefaultDebounce,
		logger:      zap.NewNop(),
		ctx:         ctx,
		cancel:      cancel,
		cache:       make(map[int]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if canonical == "" {
		r.state = State{Status: StatusNoAsset}
	} else {
		r.state = State{Status: StatusLoading}
	}
	return r
}

// OnChange registers fn to receive every state change. fn runs outside the resolver lock.
func (r *Resolver) OnChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// State returns the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Observe reports a new layout width. Each call restarts the debounce window; only the
// last width of a burst is requested. Widths already resolved are answered from cache.
func (r *Resolver) Observe(width int) {
	r.mu.Lock()
	if r.closed || width <= 0 || r.canonical == "" {
		r.mu.Unlock()
		return
	}
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if url, ok := r.cache[width]; ok {
		r.lastGood = url
		state := State{Status: StatusReady, URL: url, Width: width}
		listeners := r.setLocked(state)
		r.mu.Unlock()
		notify(listeners, state)
		return
	}

	gen := r.gen
	r.timer = time.AfterFunc(r.window, func() { r.fire(gen, width) })
	var listeners []func(State)
	var state State
	if r.lastGood == "" && r.state.Status != StatusLoading {
		state = State{Status: StatusLoading, Width: width}
		listeners = r.setLocked(state)
	}
	r.mu.Unlock()
	notify(listeners, state)
}

func (r *Resolver) fire(gen uint64, width int) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	url, err := r.transformer.Transform(ctx, r.canonical, width)

	r.mu.Lock()
	if err == nil {
		r.cache[width] = url
	}
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	var state State
	switch {
	case err == nil:
		r.lastGood = url
		state = State{Status: StatusReady, URL: url, Width: width}
	case r.lastGood != "":
		state = State{Status: StatusReady, URL: r.lastGood, Width: r.state.Width, Err: err}
	default:
		state = State{Status: StatusFailed, Width: width, Err: err}
	}
	listeners := r.setLocked(state)
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("rendition request failed",
			zap.String("canonical", r.canonical),
			zap.Int("width", width),
			zap.Error(err),
		)
	}
	notify(listeners, state)
}

func (r *Resolver) setLocked(state State) []func(State) {
	r.state = state
	return slices.Clone(r.listeners)
}

func notify(listeners []func(State), state State) {
	for _, fn := range listeners {
		fn(state)
	}
}

// Close cancels any pending request. Later completions are discarded.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancel()
}
