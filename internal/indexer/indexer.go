// Package indexer persists crawl output: page artifacts go to blob storage,
// metadata rows to the page store, and a completion summary to the
// publisher.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ragops/harvester/internal/crawler"
)

const artifactContentType = "text/markdown; charset=utf-8"

// Config controls where artifacts land.
type Config struct {
	// PathPrefix is prepended to every blob path (default "crawls").
	PathPrefix string
	// Topic receives the completion summary. Empty disables publishing.
	Topic string
}

// Indexer writes crawl results to durable storage.
type Indexer struct {
	cfg       Config
	blobs     crawler.BlobStore
	pages     crawler.PageStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	logger    *zap.Logger
}

// Summary is the payload published after a crawl is indexed.
type Summary struct {
	CrawlID string        `json:"crawl_id"`
	SeedURL string        `json:"seed_url"`
	Pages   int           `json:"pages"`
	Failed  int           `json:"failed"`
	Skipped int           `json:"skipped"`
	Stats   crawler.Stats `json:"stats"`
}

// New builds an Indexer. The publisher may be nil when no notification is
// wanted; blobs, pages, hasher and clock are required.
func New(
	cfg Config,
	blobs crawler.BlobStore,
	pages crawler.PageStore,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	logger *zap.Logger,
) (*Indexer, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if pages == nil {
		return nil, fmt.Errorf("page store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "crawls"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		cfg:       cfg,
		blobs:     blobs,
		pages:     pages,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Index persists every page of the result and publishes a summary. A
// per-page persistence failure aborts the whole index so the caller can
// retry without partial-success bookkeeping.
func (ix *Indexer) Index(ctx context.Context, crawlID string, result crawler.Result) error {
	if crawlID == "" {
		return fmt.Errorf("crawl id is required")
	}

	for _, page := range result.Pages {
		if err := ix.indexPage(ctx, crawlID, page); err != nil {
			return fmt.Errorf("index page %s: %w", page.URL, err)
		}
	}
	ix.logger.Info("crawl result indexed",
		zap.String("crawl_id", crawlID),
		zap.Int("pages", len(result.Pages)),
	)

	if ix.publisher == nil || ix.cfg.Topic == "" {
		return nil
	}
	summary := Summary{
		CrawlID: crawlID,
		SeedURL: result.SeedURL,
		Pages:   len(result.Pages),
		Failed:  len(result.FailedURLs),
		Skipped: len(result.SkippedURLs),
		Stats:   result.Stats,
	}
	msgID, err := ix.publisher.Publish(ctx, ix.cfg.Topic, summary)
	if err != nil {
		return fmt.Errorf("publish crawl summary: %w", err)
	}
	ix.logger.Debug("crawl summary published",
		zap.String("crawl_id", crawlID),
		zap.String("message_id", msgID),
	)
	return nil
}

func (ix *Indexer) indexPage(ctx context.Context, crawlID string, page crawler.PageRecord) error {
	blobPath := ix.blobPath(crawlID, page.LocalPath)
	content := []byte(page.Content)

	uri, err := ix.blobs.PutObject(ctx, blobPath, artifactContentType, strings.NewReader(page.Content))
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	digest, err := ix.hasher.Hash(content)
	if err != nil {
		return fmt.Errorf("hash content: %w", err)
	}

	row := crawler.IndexedPage{
		CrawlID:     crawlID,
		URL:         page.URL,
		LocalPath:   page.LocalPath,
		BlobURI:     uri,
		ContentHash: digest,
		Bytes:       len(content),
		IndexedAt:   ix.clock.Now(),
	}
	if err := ix.pages.RecordPage(ctx, row); err != nil {
		return fmt.Errorf("record page row: %w", err)
	}
	return nil
}

func (ix *Indexer) blobPath(crawlID, localPath string) string {
	return fmt.Sprintf("%s/%s/%s.md", ix.cfg.PathPrefix, crawlID, localPath)
}
