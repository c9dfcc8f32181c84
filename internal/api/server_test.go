package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragops/harvester/internal/clock/system"
	"github.com/ragops/harvester/internal/config"
	"github.com/ragops/harvester/internal/crawler"
	iduuid "github.com/ragops/harvester/internal/id/uuid"
	"github.com/ragops/harvester/internal/storage/memory"
)

type stubRunner struct {
	mu       sync.Mutex
	started  []crawler.Run
	canceled []string
	startErr error
}

func (r *stubRunner) StartCrawl(_ context.Context, run crawler.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started = append(r.started, run)
	return nil
}

func (r *stubRunner) CancelRun(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled = append(r.canceled, runID)
	return true
}

func (r *stubRunner) Started() []crawler.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]crawler.Run(nil), r.started...)
}

func newTestServer(t *testing.T) (*Server, *memory.RunStore, *stubRunner) {
	t.Helper()
	runs := memory.NewRunStore()
	runner := &stubRunner{}
	cfg := config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Crawler: config.CrawlerConfig{MaxPages: 9000, FetchTimeoutSeconds: 20},
		Storage: config.StorageConfig{Backend: "memory"},
	}
	srv := NewServer(runs, runner, iduuid.New(), system.New(), cfg, nil)
	return srv, runs, runner
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSubmitCrawl(t *testing.T) {
	t.Parallel()
	srv, runs, runner := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"seed_url":  "https://example.com/docs",
		"max_pages": 50,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["crawl_id"])

	run, err := runs.GetRun(context.Background(), resp["crawl_id"])
	require.NoError(t, err)
	require.Equal(t, crawler.RunStatusQueued, run.Status)
	require.Equal(t, 50, run.MaxPages)

	started := runner.Started()
	require.Len(t, started, 1)
	require.Equal(t, resp["crawl_id"], started[0].ID)
}

func TestSubmitCrawlAppliesDefaults(t *testing.T) {
	t.Parallel()
	srv, runs, _ := newTestServer(t)

	body := []byte(`{"seed_url":"https://example.com/docs"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	run, err := runs.GetRun(context.Background(), resp["crawl_id"])
	require.NoError(t, err)
	require.Equal(t, 9000, run.MaxPages)
}

func TestSubmitCrawlRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"seed_url":`},
		{"missing seed", `{}`},
		{"relative seed", `{"seed_url":"/docs"}`},
		{"bad scheme", `{"seed_url":"ftp://example.com/docs"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls", bytes.NewReader([]byte(tt.body))))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetCrawlStatus(t *testing.T) {
	t.Parallel()
	srv, runs, _ := newTestServer(t)

	require.NoError(t, runs.CreateRun(context.Background(), crawler.Run{
		ID: "run-1", SeedURL: "https://example.com/docs", Status: crawler.RunStatusRunning,
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawls/run-1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"running"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawls/missing/status", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCrawlResult(t *testing.T) {
	t.Parallel()
	srv, runs, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, runs.CreateRun(ctx, crawler.Run{ID: "run-1", Status: crawler.RunStatusRunning}))

	// Result not ready yet.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawls/run-1/result", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, runs.SetResult(ctx, "run-1", crawler.Result{
		SeedURL: "https://example.com/docs",
		Pages:   []crawler.PageRecord{{URL: "https://example.com/docs", LocalPath: "index", Content: "# Docs"}},
	}))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawls/run-1/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result crawler.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Pages, 1)
}

func TestCancelCrawl(t *testing.T) {
	t.Parallel()
	srv, runs, runner := newTestServer(t)

	require.NoError(t, runs.CreateRun(context.Background(), crawler.Run{ID: "run-1", Status: crawler.RunStatusRunning}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls/run-1/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, runner.canceled, "run-1")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls/missing/cancel", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
