package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxPages != 9000 {
		t.Fatalf("expected default max pages 9000, got %d", cfg.Crawler.MaxPages)
	}
	if cfg.Crawler.MaxRetries != 5 || cfg.Crawler.FinalPassRetries != 10 {
		t.Fatalf("expected default retry budgets, got %+v", cfg.Crawler)
	}
	if cfg.Storage.Backend != "local" {
		t.Fatalf("expected default local backend, got %q", cfg.Storage.Backend)
	}
	if got := cfg.FetchTimeout(); got != 20*time.Second {
		t.Fatalf("expected fetch timeout 20s, got %v", got)
	}
	if got := cfg.ConvertTimeout(); got != 5*time.Second {
		t.Fatalf("expected convert timeout 5s, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  max_pages: 500
  max_concurrency: 32
  max_retries: 3
  final_pass_retries: 6
  fetch_timeout_seconds: 45
  convert_timeout_seconds: 10
  min_body_bytes: 50
  user_agent: harvester-test
storage:
  backend: gcs
  gcs_bucket: bucket
  prefix: artifacts
db:
  dsn: postgres://localhost/harvester
  table: crawl_pages
pubsub:
  project_id: proj-1
  topic_name: crawl-events
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxPages != 500 || cfg.Crawler.MaxConcurrency != 32 {
		t.Fatalf("expected crawler overrides to apply, got %+v", cfg.Crawler)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.GCSBucket != "bucket" {
		t.Fatalf("expected gcs storage config, got %+v", cfg.Storage)
	}
	if cfg.DB.Table != "crawl_pages" {
		t.Fatalf("expected db table override, got %q", cfg.DB.Table)
	}
	if cfg.PubSub.ProjectID != "proj-1" || cfg.PubSub.TopicName != "crawl-events" {
		t.Fatalf("expected pubsub config, got %+v", cfg.PubSub)
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging disabled")
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{FetchTimeoutSeconds: 20},
		Storage: StorageConfig{Backend: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "negative max pages",
			cfg: func() Config {
				c := base
				c.Crawler.MaxPages = -1
				return c
			}(),
			want: "crawler.max_pages",
		},
		{
			name: "invalid fetch timeout",
			cfg: func() Config {
				c := base
				c.Crawler.FetchTimeoutSeconds = 0
				return c
			}(),
			want: "crawler.fetch_timeout_seconds",
		},
		{
			name: "unknown storage backend",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "s3"
				return c
			}(),
			want: "storage.backend",
		},
		{
			name: "local backend missing dir",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "local"
				return c
			}(),
			want: "storage.local_dir",
		},
		{
			name: "gcs backend missing bucket",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "gcs"
				return c
			}(),
			want: "storage.gcs_bucket",
		},
		{
			name: "pubsub missing topic",
			cfg: func() Config {
				c := base
				c.PubSub.ProjectID = "proj-1"
				c.PubSub.TopicName = ""
				return c
			}(),
			want: "pubsub.topic_name",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
