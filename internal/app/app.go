// Package app initializes and holds long-lived application services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/api"
	"github.com/JakeFAU/feed-aggregator/internal/clock"
	"github.com/JakeFAU/feed-aggregator/internal/config"
	"github.com/JakeFAU/feed-aggregator/internal/dispatcher"
	"github.com/JakeFAU/feed-aggregator/internal/feed"
	collyfetcher "github.com/JakeFAU/feed-aggregator/internal/fetcher/colly"
	digest "github.com/JakeFAU/feed-aggregator/internal/hash/sha256"
	"github.com/JakeFAU/feed-aggregator/internal/pipeline"
	"github.com/JakeFAU/feed-aggregator/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/feed-aggregator/internal/publisher/pubsub"
	"github.com/JakeFAU/feed-aggregator/internal/sources"
	"github.com/JakeFAU/feed-aggregator/internal/storage/gcs"
	"github.com/JakeFAU/feed-aggregator/internal/storage/local"
)

// AtomContentType is attached to every stored feed document.
const AtomContentType = "application/atom+xml; charset=utf-8"

// ErrNoSources is returned by Render when neither a location nor a configured
// sources URL is available.
var ErrNoSources = errors.New("no sources document configured")

// Deps lets callers replace collaborators that would otherwise be built from
// configuration. Nil fields are built normally.
type Deps struct {
	Fetcher   feed.Fetcher
	Loader    feed.SourceLoader
	Store     feed.BlobStore
	Publisher feed.Publisher
	Clock     feed.Clock
}

// App holds the shared, long-lived services for one process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     feed.Clock
	loader    feed.SourceLoader
	pipeline  *pipeline.Pipeline
	store     feed.BlobStore
	publisher feed.Publisher
	closers   []func() error
}

// RenderedEvent is published after a feed document has been stored.
type RenderedEvent struct {
	URI            string    `json:"uri"`
	SHA256         string    `json:"sha256"`
	Title          string    `json:"title"`
	Entries        int       `json:"entries"`
	Sources        int       `json:"sources"`
	SourcesSkipped int       `json:"sources_skipped"`
	RenderedAt     time.Time `json:"rendered_at"`
}

// New creates an App from configuration. Cloud clients are only created when the
// configuration asks for them.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: deps.Clock}
	if a.clock == nil {
		a.clock = clock.System{}
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Fetch.UserAgent,
			RespectRobots: cfg.Fetch.RespectRobots,
			Timeout:       cfg.FetchTimeout(),
			MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		})
	}
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Fetch.HostRPS, DefaultBurst: cfg.Fetch.HostBurst})
	d := dispatcher.New(fetcher, limiter, a.clock, dispatcher.Config{Timeout: cfg.FetchTimeout()}, logger)
	a.pipeline = pipeline.New(d, a.clock, logger)

	a.loader = deps.Loader
	if a.loader == nil {
		a.loader = sources.NewLoader(sources.LoaderConfig{
			Timeout:   cfg.SourcesTimeout(),
			UserAgent: cfg.Fetch.UserAgent,
		}, logger)
	}

	a.store = deps.Store
	if a.store == nil {
		store, err := a.buildStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	a.publisher = deps.Publisher
	if a.publisher == nil && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client)
		a.closers = append(a.closers, func() error {
			pub.Close()
			return client.Close()
		})
		a.publisher = pub
		logger.Info("render notifications enabled", zap.String("topic", cfg.PubSub.TopicName))
	}

	return a, nil
}

func (a *App) buildStore(ctx context.Context) (feed.BlobStore, error) {
	switch a.cfg.Output.Kind {
	case config.OutputLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Output.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		return store, nil
	case config.OutputGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{
			Bucket:       a.cfg.Output.GCSBucket,
			CacheControl: cacheControl(a.cfg.Feed.CacheMaxAgeSeconds),
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Server builds the HTTP API on top of the shared pipeline.
func (a *App) Server() *api.Server {
	return api.NewServer(a.loader, a.pipeline, api.Defaults{
		SourcesURL:         a.cfg.Sources.URL,
		Title:              a.cfg.Feed.Title,
		Subtitle:           a.cfg.Feed.Subtitle,
		Link:               a.cfg.Feed.Link,
		Days:               a.cfg.Feed.Days,
		MaxItems:           a.cfg.Feed.MaxItems,
		CacheMaxAgeSeconds: a.cfg.Feed.CacheMaxAgeSeconds,
	}, a.logger)
}

// RenderRequest describes one render run. Empty fields fall back to configuration.
type RenderRequest struct {
	Location string
	// Object is the blob path to write. "-" forces stdout regardless of the
	// configured output kind.
	Object string
}

// RenderReport summarises a render run.
type RenderReport struct {
	URI            string
	SHA256         string
	Entries        int
	Sources        int
	SourcesSkipped int
}

// Render loads the sources document, builds the feed, and writes it to the
// configured store or to stdout. When a topic is configured a RenderedEvent is
// published after a successful store write; a failed publish is logged only.
func (a *App) Render(ctx context.Context, req RenderRequest, stdout io.Writer) (RenderReport, error) {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = a.cfg.Sources.URL
	}
	if location == "" {
		return RenderReport{}, ErrNoSources
	}

	srcs, err := a.loader.Load(ctx, location)
	if err != nil {
		return RenderReport{}, fmt.Errorf("load sources: %w", err)
	}

	meta := feed.Metadata{Title: a.cfg.Feed.Title, Subtitle: a.cfg.Feed.Subtitle, Link: a.cfg.Feed.Link}
	out, err := a.pipeline.Build(ctx, pipeline.Request{
		Sources:    srcs,
		Metadata:   meta,
		WindowDays: pipeline.ClampInt(a.cfg.Feed.Days, pipeline.MinWindowDays, pipeline.MaxWindowDays),
		MaxItems:   pipeline.ClampInt(a.cfg.Feed.MaxItems, pipeline.MinMaxItems, pipeline.MaxMaxItems),
	})
	if err != nil {
		return RenderReport{}, err
	}

	report := RenderReport{
		SHA256:  digest.Sum([]byte(out.Document)),
		Entries: out.Entries,
		Sources: len(out.Results),
	}
	for _, r := range out.Results {
		if !r.OK() {
			report.SourcesSkipped++
		}
	}

	object := req.Object
	if object == "" {
		object = a.cfg.Output.Object
	}
	if object == "-" || a.store == nil {
		if _, err := io.WriteString(stdout, out.Document); err != nil {
			return report, fmt.Errorf("write feed: %w", err)
		}
		report.URI = "-"
		return report, nil
	}

	uri, err := a.store.PutObject(ctx, object, AtomContentType, strings.NewReader(out.Document))
	if err != nil {
		return report, fmt.Errorf("store feed: %w", err)
	}
	report.URI = uri
	a.logger.Info("feed stored", zap.String("uri", uri), zap.Int("entries", out.Entries))

	a.notify(ctx, meta.Title, report)
	return report, nil
}

func (a *App) notify(ctx context.Context, title string, report RenderReport) {
	if a.publisher == nil || a.cfg.PubSub.TopicName == "" {
		return
	}
	event := RenderedEvent{
		URI:            report.URI,
		SHA256:         report.SHA256,
		Title:          title,
		Entries:        report.Entries,
		Sources:        report.Sources,
		SourcesSkipped: report.SourcesSkipped,
		RenderedAt:     a.clock.Now(),
	}
	id, err := a.publisher.Publish(ctx, a.cfg.PubSub.TopicName, event)
	if err != nil {
		a.logger.Warn("render notification failed", zap.String("topic", a.cfg.PubSub.TopicName), zap.Error(err))
		return
	}
	a.logger.Debug("render notification published", zap.String("message_id", id))
}

// Close releases cloud clients and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing client", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func cacheControl(maxAge int) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", maxAge)
}
