// Package progress defines crawl progress events and the hub that fans
// them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StageBatchDone  Stage = "BATCH_DONE"
	StageCrawlStall Stage = "CRAWL_STALL"
	StageFinalPass  Stage = "FINAL_PASS"
	StageCrawlDone  Stage = "CRAWL_DONE"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	// CrawlID uniquely identifies one crawl run.
	CrawlID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Seed is the crawl's seed URL.
	Seed string
	// Processed, Succeeded, QueueDepth and Limit snapshot the crawl state
	// at the moment of emission.
	Processed  int
	Succeeded  int
	QueueDepth int
	Limit      int
	// Dur carries batch or crawl latency where applicable.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. stall reason).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == uuid.Nil {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageBatchDone, StageCrawlStall, StageFinalPass, StageCrawlDone:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
