// Package config loads and validates feed aggregator configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Output sink kinds.
const (
	OutputStdout = "stdout"
	OutputLocal  = "local"
	OutputGCS    = "gcs"
)

// SearchPaths are consulted in order when Load is given no explicit file.
var SearchPaths = []string{".", "/etc/feedagg", "$HOME/.feedagg"}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Sources SourcesConfig `mapstructure:"sources"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Output  OutputConfig  `mapstructure:"output"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig toggles zap development features and optional file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// FeedConfig holds the output feed metadata and the default window and limit.
type FeedConfig struct {
	Title              string `mapstructure:"title"`
	Subtitle           string `mapstructure:"subtitle"`
	Link               string `mapstructure:"link"`
	Days               int    `mapstructure:"days"`
	MaxItems           int    `mapstructure:"max_items"`
	CacheMaxAgeSeconds int    `mapstructure:"cache_max_age_seconds"`
}

// SourcesConfig locates the sources document.
type SourcesConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// FetchConfig governs how individual feeds are fetched.
type FetchConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	HostRPS        float64 `mapstructure:"host_rps"`
	HostBurst      int     `mapstructure:"host_burst"`
}

// OutputConfig selects where one-shot renders are written.
type OutputConfig struct {
	Kind      string `mapstructure:"kind"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Object    string `mapstructure:"object"`
}

// PubSubConfig holds metadata for render notifications. Empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FEEDAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		// Without an explicit file, look for config.{yaml,json,toml} in the usual places.
		v.SetConfigName("config")
		for _, dir := range SearchPaths {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("feed.title", "Aggregated Feed")
	v.SetDefault("feed.subtitle", "")
	v.SetDefault("feed.link", "")
	v.SetDefault("feed.days", 60)
	v.SetDefault("feed.max_items", 200)
	v.SetDefault("feed.cache_max_age_seconds", 300)
	v.SetDefault("sources.url", "")
	v.SetDefault("sources.timeout_seconds", 10)
	v.SetDefault("fetch.timeout_seconds", 12)
	v.SetDefault("fetch.user_agent", "feedagg/0.1 (+https://github.com/JakeFAU/feed-aggregator)")
	v.SetDefault("fetch.max_body_bytes", 10<<20)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.host_rps", 0)
	v.SetDefault("fetch.host_burst", 1)
	v.SetDefault("output.kind", OutputStdout)
	v.SetDefault("output.base_dir", "out")
	v.SetDefault("output.object", "feed.xml")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Feed.Title == "" {
		return fmt.Errorf("feed.title must be set")
	}
	if c.Feed.Days <= 0 {
		return fmt.Errorf("feed.days must be > 0")
	}
	if c.Feed.MaxItems <= 0 {
		return fmt.Errorf("feed.max_items must be > 0")
	}
	if c.Feed.CacheMaxAgeSeconds < 0 {
		return fmt.Errorf("feed.cache_max_age_seconds must be >= 0")
	}
	if c.Sources.TimeoutSeconds <= 0 {
		return fmt.Errorf("sources.timeout_seconds must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.HostRPS < 0 {
		return fmt.Errorf("fetch.host_rps must be >= 0")
	}
	switch c.Output.Kind {
	case OutputStdout:
	case OutputLocal:
		if c.Output.BaseDir == "" {
			return fmt.Errorf("output.base_dir must be set when output.kind is local")
		}
	case OutputGCS:
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket must be set when output.kind is gcs")
		}
	default:
		return fmt.Errorf("output.kind must be one of stdout, local, gcs")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// FetchTimeout returns the per-source fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// SourcesTimeout returns the sources document fetch budget.
func (c Config) SourcesTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget for the HTTP server.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
