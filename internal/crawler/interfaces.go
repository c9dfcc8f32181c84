package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus response metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// ContentExtractor converts a fetched page body into plain text content.
// Implementations return ErrUnconvertible when the body has no extractable
// content, and ErrConversionTimeout when conversion exceeded its budget.
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string, body []byte) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// PageStore persists metadata rows for indexed pages.
type PageStore interface {
	RecordPage(ctx context.Context, page IndexedPage) error
}

// RunStore persists crawl run metadata for the API surface.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errText string, stats Stats) error
	GetRun(ctx context.Context, runID string) (Run, error)
	SetResult(ctx context.Context, runID string, result Result) error
	GetResult(ctx context.Context, runID string) (Result, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
