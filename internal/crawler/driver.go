package crawler

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragops/harvester/internal/progress"
)

const (
	batchRampBase    = 10
	batchRampDivisor = 20
	idleYield        = 100 * time.Millisecond
	statusInterval   = 2 * time.Second
)

// Driver orchestrates one crawl: it pulls batches from the frontier,
// dispatches fetch workers under the governor's current limit, feeds batch
// success rates back to the governor, detects stalls, and runs a bounded
// final retry pass before returning results. A Driver is single-use; all
// crawl state is owned by the instance and discarded with it.
type Driver struct {
	cfg        Config
	crawlID    uuid.UUID
	baseURL    string
	domain     string
	frontier   *Frontier
	governor   *Governor
	classifier *Classifier
	fetcher    Fetcher
	extractor  ContentExtractor
	clock      Clock
	emitter    progress.Emitter
	logger     *zap.Logger

	// Collected results. Mutated only from Run's goroutine; workers hand
	// outcomes back over a channel, keeping a single owner for crawl state.
	pages []PageRecord
	stats Stats
}

// NewDriver validates the seed URL and builds a Driver with fresh frontier
// and governor state. The emitter may be nil.
func NewDriver(
	cfg Config,
	fetcher Fetcher,
	extractor ContentExtractor,
	clock Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Driver, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if !seed.IsAbs() || (seed.Scheme != "http" && seed.Scheme != "https") {
		return nil, fmt.Errorf("seed url %q must be absolute http(s)", cfg.SeedURL)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("content extractor is required")
	}

	return &Driver{
		cfg:        cfg,
		crawlID:    uuid.New(),
		baseURL:    cfg.SeedURL,
		domain:     seed.Host,
		frontier:   NewFrontier(cfg.MaxRetries),
		governor:   NewGovernor(cfg.MaxConcurrency, cfg.Governor),
		classifier: NewClassifier(),
		fetcher:    fetcher,
		extractor:  extractor,
		clock:      clock,
		emitter:    emitter,
		logger:     logger,
	}, nil
}

// CrawlID returns the generated identifier for this crawl run.
func (d *Driver) CrawlID() uuid.UUID {
	return d.crawlID
}

// Run executes the crawl to completion and returns accumulated PageRecords
// plus statistics. Per-URL failures never surface here; crawl-level stall
// or budget exhaustion are soft terminations and still return partial
// results with a nil error. Cancellation via ctx stops the crawl between
// batch synchronization points.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	d.stats = Stats{
		StartedAt:    d.clock.Now(),
		URLDurations: make(map[string]time.Duration),
	}

	d.preResolveDNS(ctx)
	d.frontier.Enqueue(d.cfg.SeedURL)
	d.emit(progress.StageCrawlStart, 0, 0, "")

	worker := &fetchWorker{
		cfg:        d.cfg,
		frontier:   d.frontier,
		classifier: d.classifier,
		fetcher:    d.fetcher,
		extractor:  d.extractor,
		baseURL:    d.baseURL,
		domain:     d.domain,
		clock:      d.clock,
		logger:     d.logger,
	}

	d.mainLoop(ctx, worker)
	d.finalPass(ctx, worker)

	return d.finalize(), nil
}

func (d *Driver) mainLoop(ctx context.Context, worker *fetchWorker) {
	lastSuccess := d.clock.Now()
	lastStatus := d.clock.Now()
	noProgress := 0

	for {
		queued := d.frontier.QueuedLen()
		pending := d.frontier.PendingLen()
		if queued == 0 && pending == 0 {
			return
		}
		if d.stats.Processed >= d.cfg.MaxPages && pending == 0 {
			d.logger.Info("page budget reached",
				zap.Int("processed", d.stats.Processed),
				zap.Int("max_pages", d.cfg.MaxPages),
			)
			return
		}
		if ctx.Err() != nil {
			d.logger.Info("crawl canceled", zap.Error(ctx.Err()))
			return
		}

		// Batch size ramps slowly as the crawl matures, bounded by the
		// governor's current limit.
		batchSize := d.governor.Limit()
		if ramp := batchRampBase + d.stats.Processed/batchRampDivisor; ramp < batchSize {
			batchSize = ramp
		}

		batchStart := d.clock.Now()
		succeeded, dispatched := d.runBatch(ctx, worker, batchSize)
		if dispatched > 0 {
			rate := float64(succeeded) / float64(dispatched)
			d.governor.Observe(rate)
			concurrencyLimit.Set(float64(d.governor.Limit()))
			d.emitBatch(progress.StageBatchDone, succeeded, d.clock.Now().Sub(batchStart))
		}

		now := d.clock.Now()
		if now.Sub(lastStatus) > statusInterval {
			d.logStatus()
			lastStatus = now
		}

		if succeeded > 0 {
			lastSuccess = now
			noProgress = 0
		} else {
			noProgress++
		}

		if noProgress > d.cfg.Stall.MaxIdleIterations &&
			d.frontier.PendingLen() == 0 &&
			now.Sub(lastSuccess) > d.cfg.Stall.Quiet {
			d.logger.Warn("no crawl progress and no pending urls, stopping main loop",
				zap.Int("idle_iterations", noProgress),
				zap.Duration("since_last_success", now.Sub(lastSuccess)),
			)
			d.emit(progress.StageCrawlStall, succeeded, 0, "stall detected")
			return
		}

		if dispatched == 0 && d.frontier.PendingLen() > 0 {
			// Waiting on in-flight network I/O; yield instead of spinning.
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleYield):
			}
		}
	}
}

// finalPass drains the remaining queue with a raised retry budget and
// oversized batches, bounded by iteration and page-budget caps so the
// crawl terminates regardless of remote-server pathology.
func (d *Driver) finalPass(ctx context.Context, worker *fetchWorker) {
	remaining := d.frontier.QueuedLen()
	if remaining == 0 || ctx.Err() != nil {
		return
	}
	d.logger.Info("processing remaining urls with extra retries",
		zap.Int("remaining", remaining),
	)
	d.frontier.SetMaxRetries(d.cfg.FinalPassRetries)

	budget := int(float64(d.cfg.MaxPages) * d.cfg.FinalPass.BudgetFactor)
	for iterations := 1; iterations <= d.cfg.FinalPass.MaxIterations; iterations++ {
		if d.frontier.QueuedLen() == 0 || d.stats.Processed >= budget || ctx.Err() != nil {
			return
		}
		batchStart := d.clock.Now()
		succeeded, dispatched := d.runBatch(ctx, worker, d.governor.Limit()*2)
		if dispatched > 0 {
			d.emitBatch(progress.StageFinalPass, succeeded, d.clock.Now().Sub(batchStart))
		}
		if succeeded == 0 && iterations > d.cfg.FinalPass.MaxIdleIterations {
			d.logger.Info("no more progress in final pass, stopping")
			return
		}
	}
}

type batchOutcome struct {
	url    string
	record PageRecord
	dur    time.Duration
	ok     bool
}

// runBatch claims up to size URLs and dispatches one worker per URL
// concurrently. The batch boundary is a synchronization point: runBatch
// returns only after every worker has reported.
func (d *Driver) runBatch(ctx context.Context, worker *fetchWorker, size int) (succeeded, dispatched int) {
	urls := d.frontier.DequeueBatch(size)
	if len(urls) == 0 {
		return 0, 0
	}

	outcomes := make(chan batchOutcome, len(urls))
	var wg sync.WaitGroup
	for _, rawURL := range urls {
		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()
			record, dur, ok := worker.process(ctx, rawURL)
			outcomes <- batchOutcome{url: rawURL, record: record, dur: dur, ok: ok}
		}(rawURL)
	}
	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		d.stats.URLDurations[outcome.url] = outcome.dur
		if outcome.ok {
			d.pages = append(d.pages, outcome.record)
			succeeded++
		}
	}
	d.stats.Processed += len(urls)
	batchesCompleted.Inc()
	return succeeded, len(urls)
}

func (d *Driver) finalize() Result {
	// Leftover queue entries at termination move to failed so every URL
	// ends in a terminal state.
	for _, leftover := range d.frontier.URLsIn(StateQueued) {
		d.frontier.MarkFailed(leftover)
	}

	counts := d.frontier.Counts()
	d.stats.Succeeded = len(d.pages)
	d.stats.Skipped = counts[StateSkipped]
	d.stats.Failed = counts[StateFailed]
	d.stats.FinishedAt = d.clock.Now()

	result := Result{
		SeedURL:     d.cfg.SeedURL,
		Pages:       d.pages,
		Stats:       d.stats,
		FailedURLs:  d.frontier.URLsIn(StateFailed),
		SkippedURLs: d.frontier.URLsIn(StateSkipped),
	}

	elapsed := d.stats.FinishedAt.Sub(d.stats.StartedAt)
	d.logger.Info("crawl completed",
		zap.String("seed", d.cfg.SeedURL),
		zap.Int("processed", d.stats.Processed),
		zap.Int("pages", len(result.Pages)),
		zap.Int("skipped", d.stats.Skipped),
		zap.Int("failed", d.stats.Failed),
		zap.Duration("elapsed", elapsed),
	)
	d.logSlowestURLs()
	d.emit(progress.StageCrawlDone, len(result.Pages), elapsed, "")
	return result
}

func (d *Driver) preResolveDNS(ctx context.Context) {
	addrs, err := net.DefaultResolver.LookupHost(ctx, d.domain)
	if err != nil || len(addrs) == 0 {
		d.logger.Debug("dns pre-resolution failed", zap.String("host", d.domain), zap.Error(err))
		return
	}
	d.logger.Info("pre-resolved crawl domain",
		zap.String("host", d.domain),
		zap.String("address", addrs[0]),
	)
}

func (d *Driver) logStatus() {
	counts := d.frontier.Counts()
	d.logger.Info("crawl status",
		zap.Int("processed", d.stats.Processed),
		zap.Int("pages", len(d.pages)),
		zap.Int("queued", counts[StateQueued]),
		zap.Int("pending", counts[StatePending]),
		zap.Int("skipped", counts[StateSkipped]),
		zap.Int("failed", counts[StateFailed]),
		zap.Int("concurrency", d.governor.Limit()),
	)
}

func (d *Driver) logSlowestURLs() {
	type urlTime struct {
		url string
		dur time.Duration
	}
	times := make([]urlTime, 0, len(d.stats.URLDurations))
	for u, dur := range d.stats.URLDurations {
		times = append(times, urlTime{url: u, dur: dur})
	}
	sort.Slice(times, func(i, j int) bool { return times[i].dur > times[j].dur })
	if len(times) > 5 {
		times = times[:5]
	}
	for _, t := range times {
		d.logger.Debug("slow url", zap.String("url", t.url), zap.Duration("elapsed", t.dur))
	}
}

func (d *Driver) emit(stage progress.Stage, succeeded int, dur time.Duration, note string) {
	if d.emitter == nil {
		return
	}
	d.emitter.Emit(progress.Event{
		CrawlID:    d.crawlID,
		TS:         d.clock.Now(),
		Stage:      stage,
		Seed:       d.cfg.SeedURL,
		Processed:  d.stats.Processed,
		Succeeded:  succeeded,
		QueueDepth: d.frontier.QueuedLen(),
		Limit:      d.governor.Limit(),
		Dur:        dur,
		Note:       note,
	})
}

func (d *Driver) emitBatch(stage progress.Stage, succeeded int, dur time.Duration) {
	d.emit(stage, succeeded, dur, "")
}
