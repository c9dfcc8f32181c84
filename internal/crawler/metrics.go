package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesVisited tracks URLs that completed fetch and extraction.
	pagesVisited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_visited_total",
		Help: "The total number of pages successfully fetched and converted.",
	})
	// pagesSkipped tracks URLs terminally skipped by classification.
	pagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_skipped_total",
		Help: "The total number of URLs skipped as unfetchable or unconvertible.",
	})
	// pagesFailed tracks URLs that exhausted their retry budget.
	pagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_failed_total",
		Help: "The total number of URLs that failed after exhausting retries.",
	})
	// fetchRetries tracks retriable failures by category.
	fetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fetch_retries_total",
		Help: "The total number of retriable per-URL failures.",
	}, []string{"kind"})
	// batchesCompleted tracks driver batch synchronization points.
	batchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_batches_total",
		Help: "The total number of completed crawl batches.",
	})
	// concurrencyLimit exposes the governor's current parallelism limit.
	concurrencyLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_concurrency_limit",
		Help: "The current adaptive concurrency limit.",
	})
)
