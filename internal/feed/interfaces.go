package feed

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a source URL and returns the body plus status.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Limiter paces outbound fetches.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// SourceLoader resolves a sources document location into feed sources.
type SourceLoader interface {
	Load(ctx context.Context, location string) ([]Source, error)
}

// BlobStore writes rendered documents and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes render notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
