// Package markdown implements crawler.ContentExtractor by converting HTML
// page bodies to Markdown.
package markdown

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/ragops/harvester/internal/crawler"
)

// Extractor converts HTML to Markdown. Conversion runs in its own goroutine
// so a pathological document cannot hold a crawl slot past the context
// deadline.
type Extractor struct{}

// New builds an Extractor.
func New() *Extractor {
	return &Extractor{}
}

type conversion struct {
	content string
	err     error
}

// Extract converts the page body to Markdown. It returns
// crawler.ErrUnconvertible when the document yields no usable text and
// crawler.ErrConversionTimeout when the context expires mid-conversion.
func (e *Extractor) Extract(ctx context.Context, pageURL string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("convert %s: %w", pageURL, crawler.ErrConversionTimeout)
	}

	done := make(chan conversion, 1)
	go func() {
		content, err := htmltomarkdown.ConvertString(string(body))
		done <- conversion{content: content, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("convert %s: %w", pageURL, crawler.ErrConversionTimeout)
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("convert %s: %w", pageURL, res.err)
		}
		if strings.TrimSpace(res.content) == "" {
			return "", fmt.Errorf("convert %s: %w", pageURL, crawler.ErrUnconvertible)
		}
		return res.content, nil
	}
}
