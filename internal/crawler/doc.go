// Package crawler implements the crawl engine: the URL frontier state
// machine, the adaptive concurrency governor, the per-URL fetch worker, and
// the batch-driven crawl driver with stall detection and a bounded final
// retry pass.
package crawler
