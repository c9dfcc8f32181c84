package crawler

import (
	"runtime"
	"time"
)

// URLState represents the lifecycle state of a URL within one crawl. A URL
// is in exactly one state at any instant; visited, skipped and failed are
// terminal.
type URLState string

// URL lifecycle states tracked by the Frontier.
const (
	StateQueued  URLState = "queued"
	StatePending URLState = "pending"
	StateVisited URLState = "visited"
	StateSkipped URLState = "skipped"
	StateFailed  URLState = "failed"
)

// PageRecord is produced for every URL that passed validation and content
// extraction. Records are immutable once created and accumulate in
// completion order, not discovery order.
type PageRecord struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Content   string `json:"content"`
}

// Stats aggregates crawl counters. It is mutated only by the driver while
// the crawl runs and is read-only once the crawl returns.
type Stats struct {
	Processed    int                      `json:"processed"`
	Succeeded    int                      `json:"succeeded"`
	Skipped      int                      `json:"skipped"`
	Failed       int                      `json:"failed"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
	URLDurations map[string]time.Duration `json:"-"`
}

// Result is the crawl output handed to downstream indexing/storage. An
// empty Pages slice is a valid outcome (seed unfetchable), not an error.
type Result struct {
	SeedURL     string       `json:"seed_url"`
	Pages       []PageRecord `json:"pages"`
	Stats       Stats        `json:"stats"`
	FailedURLs  []string     `json:"failed_urls"`
	SkippedURLs []string     `json:"skipped_urls"`
}

// RunStatus represents the lifecycle state of a crawl run submitted via the
// API or CLI.
type RunStatus string

// Run status values tracked by the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Run is the metadata persisted for each submitted crawl.
type Run struct {
	ID             string     `json:"id"`
	SeedURL        string     `json:"seed_url"`
	MaxPages       int        `json:"max_pages"`
	MaxConcurrency int        `json:"max_concurrency,omitempty"`
	Status         RunStatus  `json:"status"`
	Submitted      time.Time  `json:"submitted_at"`
	Started        *time.Time `json:"started_at,omitempty"`
	Finished       *time.Time `json:"finished_at,omitempty"`
	ErrorText      string     `json:"error_text,omitempty"`
	Stats          Stats      `json:"stats"`
}

// IndexedPage is the row recorded for each persisted page artifact.
type IndexedPage struct {
	CrawlID     string    `json:"crawl_id"`
	URL         string    `json:"url"`
	LocalPath   string    `json:"local_path"`
	BlobURI     string    `json:"blob_uri"`
	ContentHash string    `json:"content_hash"`
	Bytes       int       `json:"bytes"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// FetchResponse is the result returned by a Fetcher implementation.
// FinalURL is the URL after following redirects.
type FetchResponse struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Config carries the tunables for one crawl. The zero value is not usable;
// call withDefaults (done by NewDriver) to fill in unset knobs.
type Config struct {
	SeedURL        string
	MaxPages       int
	MaxConcurrency int

	// MaxRetries is the retry budget during the main loop; FinalPassRetries
	// replaces it once the final cleanup pass starts.
	MaxRetries       int
	FinalPassRetries int

	FetchTimeout   time.Duration
	ConvertTimeout time.Duration
	MinBodyBytes   int

	Governor  GovernorConfig
	Stall     StallConfig
	FinalPass FinalPassConfig
}

// StallConfig bounds the zero-progress condition that soft-terminates the
// main loop. Both thresholds must hold together with an empty pending set.
type StallConfig struct {
	MaxIdleIterations int
	Quiet             time.Duration
}

// FinalPassConfig bounds the cleanup pass that drains the queue once the
// main loop exits.
type FinalPassConfig struct {
	MaxIterations     int
	MaxIdleIterations int
	BudgetFactor      float64
}

// Crawl engine defaults. They are tuning choices, not correctness
// requirements.
const (
	DefaultMaxPages         = 9000
	DefaultMaxRetries       = 5
	DefaultFinalPassRetries = 10
	DefaultFetchTimeout     = 20 * time.Second
	DefaultConvertTimeout   = 5 * time.Second
	DefaultMinBodyBytes     = 100

	defaultStallIterations     = 20
	defaultStallQuiet          = 30 * time.Second
	defaultFinalPassIterations = 200
	defaultFinalPassIdle       = 50
	defaultFinalPassBudget     = 1.1
)

// DefaultMaxConcurrency derives the starting parallelism from the host CPU
// count, capped at 200.
func DefaultMaxConcurrency() int {
	limit := runtime.NumCPU() * 16
	if limit > 200 {
		limit = 200
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// withDefaults fills unset tuning knobs. MaxPages is deliberately left
// alone: a zero page budget is a valid request that yields an empty crawl.
func (c Config) withDefaults() Config {
	if c.MaxPages < 0 {
		c.MaxPages = 0
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency()
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.FinalPassRetries <= 0 {
		c.FinalPassRetries = DefaultFinalPassRetries
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = DefaultConvertTimeout
	}
	if c.MinBodyBytes <= 0 {
		c.MinBodyBytes = DefaultMinBodyBytes
	}
	if c.Stall.MaxIdleIterations <= 0 {
		c.Stall.MaxIdleIterations = defaultStallIterations
	}
	if c.Stall.Quiet <= 0 {
		c.Stall.Quiet = defaultStallQuiet
	}
	if c.FinalPass.MaxIterations <= 0 {
		c.FinalPass.MaxIterations = defaultFinalPassIterations
	}
	if c.FinalPass.MaxIdleIterations <= 0 {
		c.FinalPass.MaxIdleIterations = defaultFinalPassIdle
	}
	if c.FinalPass.BudgetFactor <= 0 {
		c.FinalPass.BudgetFactor = defaultFinalPassBudget
	}
	c.Governor = c.Governor.withDefaults()
	return c
}
