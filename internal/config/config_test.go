package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
  file: /var/log/feedagg.log
feed:
  title: Team Reading List
  subtitle: Everything we follow
  link: https://reading.example.com/
  days: 14
  max_items: 50
  cache_max_age_seconds: 60
sources:
  url: https://gist.example.com/raw/feeds.toml
  timeout_seconds: 5
fetch:
  timeout_seconds: 20
  user_agent: reading-list/1.0
  max_body_bytes: 1048576
  respect_robots: true
  host_rps: 2.5
  host_burst: 3
output:
  kind: gcs
  gcs_bucket: feeds-bucket
  object: public/feed.xml
pubsub:
  project_id: demo
  topic_name: feed-rendered
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
	if cfg.Logging.Development || cfg.Logging.File != "/var/log/feedagg.log" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
	if cfg.Feed.Title != "Team Reading List" || cfg.Feed.Days != 14 || cfg.Feed.MaxItems != 50 {
		t.Fatalf("expected feed overrides, got %+v", cfg.Feed)
	}
	if cfg.Fetch.HostRPS != 2.5 || cfg.Fetch.HostBurst != 3 || !cfg.Fetch.RespectRobots {
		t.Fatalf("expected fetch overrides, got %+v", cfg.Fetch)
	}
	if cfg.Output.Kind != OutputGCS || cfg.Output.GCSBucket != "feeds-bucket" {
		t.Fatalf("expected gcs output, got %+v", cfg.Output)
	}
	if cfg.PubSub.TopicName != "feed-rendered" {
		t.Fatalf("expected pubsub topic, got %+v", cfg.PubSub)
	}
	if got := cfg.FetchTimeout(); got != 20*time.Second {
		t.Fatalf("expected fetch timeout 20s, got %v", got)
	}
	if got := cfg.SourcesTimeout(); got != 5*time.Second {
		t.Fatalf("expected sources timeout 5s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Feed.Days != 60 || cfg.Feed.MaxItems != 200 || cfg.Feed.CacheMaxAgeSeconds != 300 {
		t.Fatalf("unexpected feed defaults: %+v", cfg.Feed)
	}
	if cfg.FetchTimeout() != 12*time.Second || cfg.SourcesTimeout() != 10*time.Second {
		t.Fatalf("unexpected timeouts: fetch=%v sources=%v", cfg.FetchTimeout(), cfg.SourcesTimeout())
	}
	if cfg.Output.Kind != OutputStdout {
		t.Fatalf("expected stdout output by default, got %q", cfg.Output.Kind)
	}
	if cfg.ShutdownTimeout() != 15*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout())
	}
}

// Not parallel: mutates process environment.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FEEDAGG_FEED_TITLE", "From Env")
	t.Setenv("FEEDAGG_SOURCES_URL", "https://env.example/feeds.toml")
	t.Setenv("FEEDAGG_FETCH_TIMEOUT_SECONDS", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Feed.Title != "From Env" {
		t.Fatalf("expected env title, got %q", cfg.Feed.Title)
	}
	if cfg.Sources.URL != "https://env.example/feeds.toml" {
		t.Fatalf("expected env sources url, got %q", cfg.Sources.URL)
	}
	if cfg.FetchTimeout() != 3*time.Second {
		t.Fatalf("expected env fetch timeout, got %v", cfg.FetchTimeout())
	}
}

// Not parallel: swaps the package-level search paths.
func TestLoadDiscoversConfigInSearchPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[feed]\ntitle = \"Discovered\"\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	original := SearchPaths
	SearchPaths = []string{dir}
	t.Cleanup(func() { SearchPaths = original })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Feed.Title != "Discovered" {
		t.Fatalf("expected discovered title, got %q", cfg.Feed.Title)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Feed:    FeedConfig{Title: "t", Days: 60, MaxItems: 200},
		Sources: SourcesConfig{TimeoutSeconds: 10},
		Fetch:   FetchConfig{TimeoutSeconds: 12},
		Output:  OutputConfig{Kind: OutputStdout},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "missing title", mutate: func(c *Config) { c.Feed.Title = "" }, want: "feed.title"},
		{name: "invalid days", mutate: func(c *Config) { c.Feed.Days = 0 }, want: "feed.days"},
		{name: "invalid max items", mutate: func(c *Config) { c.Feed.MaxItems = -1 }, want: "feed.max_items"},
		{name: "negative cache age", mutate: func(c *Config) { c.Feed.CacheMaxAgeSeconds = -1 }, want: "feed.cache_max_age_seconds"},
		{name: "invalid sources timeout", mutate: func(c *Config) { c.Sources.TimeoutSeconds = 0 }, want: "sources.timeout_seconds"},
		{name: "invalid fetch timeout", mutate: func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, want: "fetch.timeout_seconds"},
		{name: "negative rps", mutate: func(c *Config) { c.Fetch.HostRPS = -1 }, want: "fetch.host_rps"},
		{name: "unknown output", mutate: func(c *Config) { c.Output.Kind = "s3" }, want: "output.kind"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Output.Kind = OutputGCS }, want: "output.gcs_bucket"},
		{name: "local without dir", mutate: func(c *Config) { c.Output.Kind = OutputLocal }, want: "output.base_dir"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
