package crawler

import "testing"

func TestLocalPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		url    string
		domain string
		want   string
		ok     bool
	}{
		{"plain path", "https://example.com/docs/intro", "example.com", "docs/intro", true},
		{"root", "https://example.com/", "example.com", "index", true},
		{"no path", "https://example.com", "example.com", "index", true},
		{"trailing slash", "https://example.com/docs/", "example.com", "docs/index", true},
		{"unsafe chars", `https://example.com/a:b/c*d`, "example.com", "a_b/c_d", true},
		{"wrong domain", "https://other.com/docs", "example.com", "", false},
		{"unparseable", "https://exa mple.com/x", "example.com", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := LocalPath(tt.url, tt.domain)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("LocalPath(%q, %q) = (%q, %v), want (%q, %v)",
					tt.url, tt.domain, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLocalPathDeterministic(t *testing.T) {
	t.Parallel()
	a, _ := LocalPath("https://example.com/docs/guide", "example.com")
	b, _ := LocalPath("https://example.com/docs/guide", "example.com")
	if a != b {
		t.Fatalf("expected deterministic mapping, got %q vs %q", a, b)
	}
}
