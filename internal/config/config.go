// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the crawl engine defaults used when a submission
// does not override them.
type CrawlerConfig struct {
	MaxPages              int    `mapstructure:"max_pages"`
	MaxConcurrency        int    `mapstructure:"max_concurrency"`
	MaxRetries            int    `mapstructure:"max_retries"`
	FinalPassRetries      int    `mapstructure:"final_pass_retries"`
	FetchTimeoutSeconds   int    `mapstructure:"fetch_timeout_seconds"`
	ConvertTimeoutSeconds int    `mapstructure:"convert_timeout_seconds"`
	MinBodyBytes          int    `mapstructure:"min_body_bytes"`
	UserAgent             string `mapstructure:"user_agent"`
}

// StorageConfig selects and parameterizes the blob backend.
type StorageConfig struct {
	// Backend is one of "local", "gcs", or "memory".
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database. An empty DSN
// disables Postgres persistence.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications. An
// empty project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.max_pages", 9000)
	v.SetDefault("crawler.max_retries", 5)
	v.SetDefault("crawler.final_pass_retries", 10)
	v.SetDefault("crawler.fetch_timeout_seconds", 20)
	v.SetDefault("crawler.convert_timeout_seconds", 5)
	v.SetDefault("crawler.min_body_bytes", 100)
	v.SetDefault("crawler.user_agent", "harvester-bot/0.1")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./artifacts")
	v.SetDefault("storage.prefix", "crawls")
	v.SetDefault("db.table", "pages")
	v.SetDefault("pubsub.topic_name", "crawl-done")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.fetch_timeout_seconds must be > 0")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.FetchTimeoutSeconds) * time.Second
}

// ConvertTimeout converts the configured conversion timeout to a duration.
func (c Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Crawler.ConvertTimeoutSeconds) * time.Second
}
