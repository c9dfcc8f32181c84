package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWorker(t *testing.T, cfg Config, fetcher Fetcher, extractor ContentExtractor) (*fetchWorker, *Frontier) {
	t.Helper()
	cfg = cfg.withDefaults()
	frontier := NewFrontier(cfg.MaxRetries)
	return &fetchWorker{
		cfg:        cfg,
		frontier:   frontier,
		classifier: NewClassifier(),
		fetcher:    fetcher,
		extractor:  extractor,
		baseURL:    cfg.SeedURL,
		domain:     "example.com",
		clock:      stubClock{},
		logger:     zap.NewNop(),
	}, frontier
}

func claim(f *Frontier, url string) {
	f.Enqueue(url)
	f.DequeueBatch(1)
}

func TestWorkerSuccessProducesRecordAndDiscoversLinks(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/intro"
	fetcher := newFakeFetcher()
	fetcher.page(url, "/docs/next", "/docs/other")

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())
	claim(frontier, url)

	record, _, ok := w.process(context.Background(), url)
	require.True(t, ok)
	require.Equal(t, url, record.URL)
	require.Equal(t, "docs/intro", record.LocalPath)
	require.NotEmpty(t, record.Content)

	state, _ := frontier.State(url)
	require.Equal(t, StateVisited, state)

	for _, discovered := range []string{"https://example.com/docs/next", "https://example.com/docs/other"} {
		state, ok := frontier.State(discovered)
		require.True(t, ok, discovered)
		require.Equal(t, StateQueued, state)
	}
}

func TestWorkerBadStatusRetries(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/flaky"
	fetcher := newFakeFetcher()
	fetcher.status(url, 500)

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateQueued, state)
	require.Equal(t, 1, frontier.Attempts(url))
}

func TestWorkerNetworkErrorRetries(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/down"
	fetcher := newFakeFetcher()
	fetcher.respond(url, fetchResult{err: errors.New("connection refused")})

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateQueued, state)
}

func TestWorkerCrossDomainRedirectSkipsWithoutRetry(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/moved"
	resp := htmlResponse(url)
	resp.FinalURL = "https://cdn.example.net/docs/moved"
	fetcher := newFakeFetcher()
	fetcher.respond(url, fetchResult{resp: resp})

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateSkipped, state)
	require.Equal(t, 0, frontier.Attempts(url))
	require.Equal(t, 1, fetcher.callCount(url))
}

func TestWorkerUnsupportedContentTypeSkips(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/download"
	resp := htmlResponse(url)
	resp.ContentType = "application/octet-stream"
	fetcher := newFakeFetcher()
	fetcher.respond(url, fetchResult{resp: resp})

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateSkipped, state)
}

func TestWorkerUndersizedBodyRetries(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/stub"
	resp := FetchResponse{
		URL: url, FinalURL: url, StatusCode: 200,
		ContentType: "text/html", Body: []byte("<p>x</p>"),
	}
	fetcher := newFakeFetcher()
	fetcher.respond(url, fetchResult{resp: resp})

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 100}, fetcher, newFakeExtractor())
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateQueued, state)
}

func TestWorkerUnconvertibleContentSkips(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/empty"
	fetcher := newFakeFetcher()
	fetcher.page(url)
	extractor := newFakeExtractor()
	extractor.failWith(url, ErrUnconvertible)

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, extractor)
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateSkipped, state)
}

func TestWorkerConversionTimeoutRetries(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/slow"
	fetcher := newFakeFetcher()
	fetcher.page(url)
	extractor := newFakeExtractor()
	extractor.failWith(url, ErrConversionTimeout)

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, extractor)
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateQueued, state)
}

func TestWorkerUnfetchableURLSkipsWithoutFetch(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/file.pdf"
	fetcher := newFakeFetcher()

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())
	claim(frontier, url)

	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateSkipped, state)
	require.Equal(t, 0, fetcher.callCount(url))
}

func TestWorkerRetryThenSuccess(t *testing.T) {
	t.Parallel()
	const url = "https://example.com/docs/flaky"
	failed := htmlResponse(url)
	failed.StatusCode = 503
	fetcher := newFakeFetcher()
	fetcher.respond(url, fetchResult{resp: failed}, fetchResult{resp: htmlResponse(url)})

	w, frontier := newTestWorker(t, Config{SeedURL: "https://example.com/docs", MinBodyBytes: 1}, fetcher, newFakeExtractor())

	claim(frontier, url)
	_, _, ok := w.process(context.Background(), url)
	require.False(t, ok)

	frontier.DequeueBatch(1)
	_, _, ok = w.process(context.Background(), url)
	require.True(t, ok)

	state, _ := frontier.State(url)
	require.Equal(t, StateVisited, state)
	require.Equal(t, 2, fetcher.callCount(url))
}

func TestIsMarkupContentType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"application/xhtml+xml", true},
		{"TEXT/HTML", true},
		{"application/json", false},
		{"image/png", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isMarkupContentType(tt.contentType); got != tt.want {
			t.Fatalf("isMarkupContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
