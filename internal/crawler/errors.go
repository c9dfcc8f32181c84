package crawler

import (
	"errors"
	"fmt"
)

// FailureKind categorizes per-URL failures. Every kind maps to exactly one
// Disposition; terminal failure only ever arises from retry exhaustion.
type FailureKind string

// Failure categories observed by the fetch worker.
const (
	KindNetworkTimeout         FailureKind = "network_timeout"
	KindBadStatus              FailureKind = "bad_status"
	KindCrossDomainRedirect    FailureKind = "cross_domain_redirect"
	KindUnsupportedContentType FailureKind = "unsupported_content_type"
	KindUndersizedBody         FailureKind = "undersized_body"
	KindConversionTimeout      FailureKind = "conversion_timeout"
	KindExtractor              FailureKind = "extractor_error"
	KindUnfetchable            FailureKind = "unfetchable"
)

// Disposition is the frontier action a failure kind maps to.
type Disposition int

// Failure dispositions.
const (
	// DispositionRetry re-queues the URL and spends retry budget.
	DispositionRetry Disposition = iota
	// DispositionSkip terminally skips the URL without touching retries.
	DispositionSkip
)

// Disposition maps the failure category to a frontier action. Permanent
// classification mismatches (redirect domain, content type, unfetchable URL)
// skip; everything else retries.
func (k FailureKind) Disposition() Disposition {
	switch k {
	case KindCrossDomainRedirect, KindUnsupportedContentType, KindUnfetchable:
		return DispositionSkip
	default:
		return DispositionRetry
	}
}

// FetchError wraps a per-URL failure with its category. Fetch errors are
// always captured at the worker boundary and converted into frontier state
// transitions; they never abort the crawl.
type FetchError struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(kind FailureKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// Sentinel errors reported by ContentExtractor implementations.
var (
	// ErrUnconvertible signals the extractor explicitly reported the content
	// as unconvertible; the worker treats it as a terminal skip.
	ErrUnconvertible = errors.New("content not convertible")
	// ErrConversionTimeout signals the extractor exceeded its conversion
	// budget; the worker treats it as a retriable failure.
	ErrConversionTimeout = errors.New("content conversion timed out")
)
