// Package ratelimit implements per-client token buckets for expensive API routes.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxClients bounds how many client buckets are tracked before idle ones are pruned.
const DefaultMaxClients = 10000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client key.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	defaultRate  rate.Limit
	defaultBurst int
	maxClients   int
	idle         time.Duration
	now          func() time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	// RPS is the sustained rate per client. Zero or negative disables limiting.
	RPS        float64
	Burst      int
	MaxClients int
	// IdleTTL is how long an unused bucket survives a prune.
	IdleTTL time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Limiter{
		buckets:      make(map[string]*bucket),
		defaultRate:  r,
		defaultBurst: burst,
		maxClients:   maxClients,
		idle:         idle,
		now:          time.Now,
	}
}

// Allow reports whether the client identified by key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	if l.defaultRate == rate.Inf {
		return true
	}
	if key == "" {
		key = "unknown"
	}
	l.mu.Lock()
	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		if len(l.buckets) >= l.maxClients {
			l.pruneLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// Clients reports how many buckets are tracked.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, key)
		}
	}
}
