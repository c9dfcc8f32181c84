package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Now() }

type fetchResult struct {
	resp FetchResponse
	err  error
}

// fakeFetcher serves scripted responses per URL. When a URL has several
// scripted results they are consumed in order; the last one repeats.
type fakeFetcher struct {
	mu      sync.Mutex
	scripts map[string][]fetchResult
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		scripts: make(map[string][]fetchResult),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) respond(url string, results ...fetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[url] = append(f.scripts[url], results...)
}

func (f *fakeFetcher) page(url string, links ...string) {
	f.respond(url, fetchResult{resp: htmlResponse(url, links...)})
}

func (f *fakeFetcher) status(url string, code int) {
	resp := htmlResponse(url)
	resp.StatusCode = code
	f.respond(url, fetchResult{resp: resp})
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++

	script, ok := f.scripts[rawURL]
	if !ok || len(script) == 0 {
		return FetchResponse{}, fmt.Errorf("no scripted response for %s", rawURL)
	}
	idx := f.calls[rawURL] - 1
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return script[idx].resp, script[idx].err
}

// htmlResponse builds a 200 text/html response whose body links to the
// given URLs and is padded past any minimum-size threshold.
func htmlResponse(url string, links ...string) FetchResponse {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, link := range links {
		fmt.Fprintf(&b, `<a href=%q>link</a>`, link)
	}
	b.WriteString(strings.Repeat("<p>content</p>", 20))
	b.WriteString("</body></html>")
	return FetchResponse{
		URL:         url,
		FinalURL:    url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(b.String()),
	}
}

// fakeExtractor echoes the body, or fails for URLs registered in errs.
type fakeExtractor struct {
	mu   sync.Mutex
	errs map[string]error
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{errs: make(map[string]error)}
}

func (e *fakeExtractor) failWith(url string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[url] = err
}

func (e *fakeExtractor) Extract(_ context.Context, pageURL string, body []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.errs[pageURL]; ok {
		return "", err
	}
	return string(body), nil
}
