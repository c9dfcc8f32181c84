package crawler

import (
	"sort"
	"sync"
)

// Frontier owns all URL lifecycle state for one crawl: the pending-work
// queue, the per-state sets, and the retry counters. It is the single owner
// of state transitions; workers request transitions through its methods and
// every mutation is serialized behind one mutex even though fetch I/O runs
// in parallel.
type Frontier struct {
	mu         sync.Mutex
	states     map[string]URLState
	queue      []string
	retries    map[string]int
	maxRetries int
}

// NewFrontier builds an empty frontier with the given retry budget.
func NewFrontier(maxRetries int) *Frontier {
	return &Frontier{
		states:     make(map[string]URLState),
		retries:    make(map[string]int),
		maxRetries: maxRetries,
	}
}

// Enqueue schedules a URL if it has never been seen by this crawl. It is a
// no-op for URLs in any known state, which guarantees each URL is scheduled
// at most once concurrently and never duplicated in the queue.
func (f *Frontier) Enqueue(url string) bool {
	if url == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, known := f.states[url]; known {
		return false
	}
	f.states[url] = StateQueued
	f.queue = append(f.queue, url)
	return true
}

// DequeueBatch claims up to n queued URLs, transitioning each to pending.
// Queue entries whose URL left the queued state since insertion (for
// example a skip recorded before the first fetch attempt) are dropped
// rather than claimed.
func (f *Frontier) DequeueBatch(n int) []string {
	if n <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]string, 0, n)
	for len(batch) < n && len(f.queue) > 0 {
		url := f.queue[0]
		f.queue = f.queue[1:]
		if f.states[url] != StateQueued {
			continue
		}
		f.states[url] = StatePending
		batch = append(batch, url)
	}
	return batch
}

// MarkVisited records a successful fetch-and-extract. Terminal.
func (f *Frontier) MarkVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[url] = StateVisited
}

// MarkSkipped terminally skips a URL. Skips never consume retry budget.
func (f *Frontier) MarkSkipped(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[url] = StateSkipped
}

// Release reports a retriable failure for a pending URL. Within budget the
// incremented retry count is recorded and the URL returns to the queue tail
// so retries interleave with fresh discoveries; otherwise the URL
// transitions to failed and the counter stays at the budget, so a recorded
// count never exceeds the active limit. It returns whether the URL was
// re-queued along with the attempt number that was just spent.
func (f *Frontier) Release(url string) (requeued bool, attempts int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attempts = f.retries[url] + 1
	if attempts <= f.maxRetries {
		f.retries[url] = attempts
		f.states[url] = StateQueued
		f.queue = append(f.queue, url)
		return true, attempts
	}
	f.states[url] = StateFailed
	return false, attempts
}

// MarkFailed terminally fails a URL regardless of its retry counter. The
// driver uses it to drain leftover queue entries when the crawl ends.
func (f *Frontier) MarkFailed(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[url] = StateFailed
}

// SetMaxRetries raises (or lowers) the active retry budget. Used by the
// driver when entering the final cleanup pass.
func (f *Frontier) SetMaxRetries(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxRetries = n
}

// Attempts returns the recorded attempt count for a URL.
func (f *Frontier) Attempts(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retries[url]
}

// State reports the current state of a URL.
func (f *Frontier) State(url string) (URLState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[url]
	return s, ok
}

// QueuedLen returns the number of claimable queue entries.
func (f *Frontier) QueuedLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, url := range f.queue {
		if f.states[url] == StateQueued {
			n++
		}
	}
	return n
}

// PendingLen returns the number of in-flight URLs.
func (f *Frontier) PendingLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, state := range f.states {
		if state == StatePending {
			n++
		}
	}
	return n
}

// URLsIn returns the sorted URLs currently in the given state.
func (f *Frontier) URLsIn(state URLState) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var urls []string
	for url, s := range f.states {
		if s == state {
			urls = append(urls, url)
		}
	}
	sort.Strings(urls)
	return urls
}

// Counts returns the number of URLs per state.
func (f *Frontier) Counts() map[URLState]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[URLState]int, 5)
	for _, s := range f.states {
		counts[s]++
	}
	return counts
}
