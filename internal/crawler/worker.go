package crawler

import (
	"context"
	"errors"
	"mime"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// fetchWorker executes the per-URL pipeline under one concurrency slot:
// classify, fetch, validate, extract, discover links, report the outcome to
// the frontier. Every failure is captured here and converted into a state
// transition; nothing propagates to the driver as a fatal error.
type fetchWorker struct {
	cfg        Config
	frontier   *Frontier
	classifier *Classifier
	fetcher    Fetcher
	extractor  ContentExtractor
	baseURL    string
	domain     string
	clock      Clock
	logger     *zap.Logger
}

// process runs the pipeline for one claimed URL. It returns the PageRecord
// and true on success. The elapsed duration is recorded for the URL
// regardless of outcome.
func (w *fetchWorker) process(ctx context.Context, rawURL string) (PageRecord, time.Duration, bool) {
	start := w.clock.Now()
	record, err := w.attempt(ctx, rawURL)
	elapsed := w.clock.Now().Sub(start)
	if err == nil {
		w.frontier.MarkVisited(rawURL)
		pagesVisited.Inc()
		return record, elapsed, true
	}

	w.resolveFailure(rawURL, err)
	return PageRecord{}, elapsed, false
}

func (w *fetchWorker) attempt(ctx context.Context, rawURL string) (PageRecord, error) {
	if !w.classifier.Fetchable(rawURL) {
		return PageRecord{}, newFetchError(KindUnfetchable, rawURL, nil)
	}

	resp, err := w.fetch(ctx, rawURL)
	if err != nil {
		return PageRecord{}, err
	}
	if err := w.validate(rawURL, resp); err != nil {
		return PageRecord{}, err
	}

	content, err := w.extract(ctx, rawURL, resp.Body)
	if err != nil {
		return PageRecord{}, err
	}

	localPath, ok := LocalPath(rawURL, w.domain)
	if !ok {
		return PageRecord{}, newFetchError(KindUnfetchable, rawURL, nil)
	}

	// Reuse the already-fetched body for link discovery; candidates that
	// are already known in any state are dropped by the frontier.
	for _, candidate := range ExtractLinks(resp.Body, rawURL, w.baseURL, w.classifier) {
		w.frontier.Enqueue(candidate)
	}

	return PageRecord{URL: rawURL, LocalPath: localPath, Content: content}, nil
}

func (w *fetchWorker) fetch(ctx context.Context, rawURL string) (FetchResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	resp, err := w.fetcher.Fetch(fetchCtx, rawURL)
	if err != nil {
		kind := KindBadStatus
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			kind = KindNetworkTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			kind = KindNetworkTimeout
		}
		return FetchResponse{}, newFetchError(kind, rawURL, err)
	}
	return resp, nil
}

func (w *fetchWorker) validate(rawURL string, resp FetchResponse) error {
	if resp.StatusCode != 200 {
		return newFetchError(KindBadStatus, rawURL, nil)
	}

	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = resp.URL
	}
	final, err := url.Parse(finalURL)
	if err != nil || final.Host != w.domain {
		// A redirect that left the crawl domain is not fetchable, not a
		// transient failure.
		return newFetchError(KindCrossDomainRedirect, rawURL, err)
	}

	if !isMarkupContentType(resp.ContentType) {
		return newFetchError(KindUnsupportedContentType, rawURL, nil)
	}

	if len(resp.Body) < w.cfg.MinBodyBytes {
		return newFetchError(KindUndersizedBody, rawURL, nil)
	}
	return nil
}

func (w *fetchWorker) extract(ctx context.Context, rawURL string, body []byte) (string, error) {
	convertCtx, cancel := context.WithTimeout(ctx, w.cfg.ConvertTimeout)
	defer cancel()

	content, err := w.extractor.Extract(convertCtx, rawURL, body)
	if err == nil {
		return content, nil
	}
	switch {
	case errors.Is(err, ErrUnconvertible):
		return "", newFetchError(KindUnfetchable, rawURL, err)
	case errors.Is(err, ErrConversionTimeout), errors.Is(err, context.DeadlineExceeded):
		return "", newFetchError(KindConversionTimeout, rawURL, err)
	default:
		return "", newFetchError(KindExtractor, rawURL, err)
	}
}

// resolveFailure converts a categorized failure into the corresponding
// frontier transition and diagnostics.
func (w *fetchWorker) resolveFailure(rawURL string, err error) {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		fetchErr = newFetchError(KindExtractor, rawURL, err)
	}

	if fetchErr.Kind.Disposition() == DispositionSkip {
		w.frontier.MarkSkipped(rawURL)
		pagesSkipped.Inc()
		w.logger.Debug("url skipped",
			zap.String("url", rawURL),
			zap.String("kind", string(fetchErr.Kind)),
		)
		return
	}

	fetchRetries.WithLabelValues(string(fetchErr.Kind)).Inc()
	requeued, attempts := w.frontier.Release(rawURL)
	if requeued {
		w.logger.Debug("url requeued for retry",
			zap.String("url", rawURL),
			zap.String("kind", string(fetchErr.Kind)),
			zap.Int("attempts", attempts),
		)
		return
	}
	pagesFailed.Inc()
	w.logger.Warn("url failed after exhausting retries",
		zap.String("url", rawURL),
		zap.String("kind", string(fetchErr.Kind)),
		zap.Int("attempts", attempts),
		zap.Error(fetchErr.Err),
	)
}

func isMarkupContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}
