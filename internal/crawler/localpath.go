package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizePathPart(part string) string {
	return strings.TrimSpace(unsafePathChars.ReplaceAllString(part, "_"))
}

// LocalPath maps a URL to a deterministic, filesystem-safe relative path.
// Directory-style URLs get a trailing "index" segment. The second return
// is false when the URL does not belong to the crawl's domain.
func LocalPath(rawURL, domain string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host != domain {
		return "", false
	}

	trimmed := strings.Trim(parsed.Path, "/")
	var parts []string
	if trimmed != "" {
		for _, part := range strings.Split(trimmed, "/") {
			parts = append(parts, sanitizePathPart(part))
		}
	}
	if strings.HasSuffix(parsed.Path, "/") || len(parts) == 0 {
		parts = append(parts, "index")
	}
	return strings.Join(parts, "/"), true
}
