package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

var anchorPattern = regexp.MustCompile(`(?i)<a[^>]+href=["'](.*?)["']`)

// ExtractLinks scans page markup for anchor references and returns the
// same-domain candidate URLs worth crawling: each href is resolved against
// the page URL, must pass the classifier, must begin with the crawl's base
// URL prefix, and must carry no fragment or query component (pages
// differing only by fragment/query are duplicates of the un-adorned URL).
// Candidates are returned deduplicated, in document order.
func ExtractLinks(body []byte, pageURL, baseURL string, classifier *Classifier) []string {
	matches := anchorPattern.FindAllSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var candidates []string
	for _, m := range matches {
		href := strings.TrimSpace(string(m[1]))
		if href == "" || href == "#" {
			continue
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		absolute := page.ResolveReference(ref).String()

		if classifier != nil && !classifier.Fetchable(absolute) {
			continue
		}
		if !strings.HasPrefix(absolute, baseURL) {
			continue
		}
		if strings.ContainsAny(absolute, "#?") {
			continue
		}
		if _, dup := seen[absolute]; dup {
			continue
		}
		seen[absolute] = struct{}{}
		candidates = append(candidates, absolute)
	}
	return candidates
}
