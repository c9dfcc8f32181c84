package crawler

import (
	"net/url"
	"path"
	"strings"
)

// placeholderToken marks URLs containing an unresolved templating
// placeholder left behind by site generators.
const placeholderToken = "%link%"

// skippedExtensions lists known non-page file types: documents, archives,
// media, images, and structured-data formats.
var skippedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".ppt": {}, ".pptx": {},
	".xls": {}, ".xlsx": {}, ".zip": {}, ".rar": {}, ".mp3": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".jpg": {}, ".jpeg": {},
	".png": {}, ".gif": {}, ".svg": {}, ".csv": {}, ".json": {},
	".xml": {},
}

// Classifier decides whether a URL is worth fetching at all. It is a pure
// predicate over the URL string; rejected URLs are terminal skips that
// never consume retry budget.
type Classifier struct {
	skipExt map[string]struct{}
}

// NewClassifier returns a classifier with the default extension blocklist.
func NewClassifier() *Classifier {
	return &Classifier{skipExt: skippedExtensions}
}

// Fetchable reports whether the URL may be fetched: HTTP(S) scheme, no
// blocked extension, no unresolved placeholder token.
func (c *Classifier) Fetchable(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "http") {
		return false
	}
	if strings.Contains(rawURL, placeholderToken) {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, blocked := c.skipExt[ext]; blocked {
		return false
	}
	return true
}
