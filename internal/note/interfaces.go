package note

import (
	"context"
	"time"
)

// Repository persists notes in the relational store.
type Repository interface {
	List(ctx context.Context, opts ListOptions) ([]Note, error)
	Insert(ctx context.Context, n Note) error
	Update(ctx context.Context, n Note) error
	Delete(ctx context.Context, uid string) error
}

// AssetStore uploads screenshots and builds CDN rendition URLs.
type AssetStore interface {
	Upload(ctx context.Context, data []byte, id string, folder string) (string, error)
	Delete(ctx context.Context, id string, folder string) error
	Transform(ctx context.Context, canonicalOrID string, width int) (string, error)
}

// Transformer is the read-only subset of AssetStore used by rendition resolvers.
type Transformer interface {
	Transform(ctx context.Context, canonicalOrID string, width int) (string, error)
}

// Browser captures page metadata and a full-page screenshot for one URL.
type Browser interface {
	Capture(ctx context.Context, rawURL string, viewport Viewport) (PageCapture, error)
}

// Publisher pushes lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator produces note uids.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
