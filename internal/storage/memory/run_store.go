package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ragops/harvester/internal/crawler"
)

// Store errors.
var (
	ErrRunExists   = errors.New("run already exists")
	ErrRunNotFound = errors.New("run not found")
)

// RunStore provides an in-memory crawler.RunStore implementation.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[string]crawler.Run
	results map[string]crawler.Result
	pages   map[string][]crawler.IndexedPage
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:    make(map[string]crawler.Run),
		results: make(map[string]crawler.Result),
		pages:   make(map[string][]crawler.IndexedPage),
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return ErrRunExists
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus updates the status, error text and counters for a run,
// stamping start and finish times on the matching transitions.
func (s *RunStore) UpdateRunStatus(
	_ context.Context,
	runID string,
	status crawler.RunStatus,
	errText string,
	stats crawler.Stats,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.Status = status
	run.ErrorText = errText
	run.Stats = stats
	now := time.Now().UTC()
	if status == crawler.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if isTerminal(status) {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return crawler.Run{}, ErrRunNotFound
	}
	return run, nil
}

// SetResult records the crawl result for a run.
func (s *RunStore) SetResult(_ context.Context, runID string, result crawler.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return ErrRunNotFound
	}
	s.results[runID] = result
	return nil
}

// GetResult fetches the stored result for a run.
func (s *RunStore) GetResult(_ context.Context, runID string) (crawler.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return crawler.Result{}, ErrRunNotFound
	}
	return result, nil
}

// RecordPage appends an indexed page row for a run, satisfying
// crawler.PageStore.
func (s *RunStore) RecordPage(_ context.Context, page crawler.IndexedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.CrawlID] = append(s.pages[page.CrawlID], page)
	return nil
}

// ListPages returns all recorded pages for a run.
func (s *RunStore) ListPages(_ context.Context, crawlID string) ([]crawler.IndexedPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := s.pages[crawlID]
	out := make([]crawler.IndexedPage, len(pages))
	copy(out, pages)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status crawler.RunStatus) bool {
	switch status {
	case crawler.RunStatusSucceeded, crawler.RunStatusFailed, crawler.RunStatusCanceled:
		return true
	default:
		return false
	}
}
