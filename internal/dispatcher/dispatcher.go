// Package dispatcher fans source fetches out concurrently and joins their results.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
	"github.com/JakeFAU/feed-aggregator/internal/feed/normalize"
	"github.com/JakeFAU/feed-aggregator/internal/metrics"
)

var tracer = otel.Tracer("github.com/JakeFAU/feed-aggregator/internal/dispatcher")

// DefaultTimeout bounds a single source fetch when Config leaves it unset.
const DefaultTimeout = 12 * time.Second

// SkipReason explains why a source contributed no entries.
type SkipReason string

// Skip reasons reported in Result. The empty reason marks a successful source.
const (
	SkipNone               SkipReason = ""
	SkipEmptyURL           SkipReason = "empty_url"
	SkipRateLimited        SkipReason = "rate_limited"
	SkipTimeout            SkipReason = "timeout"
	SkipFetchError         SkipReason = "fetch_error"
	SkipHTTPStatus         SkipReason = "http_status"
	SkipUnrecognizedFormat SkipReason = "unrecognized_format"
)

// Result is the terminal state of one source.
type Result struct {
	Source   feed.Source
	Format   feed.Format
	Entries  []feed.Entry
	Skip     SkipReason
	Err      error
	Duration time.Duration
}

// OK reports whether the source was fetched and recognized.
func (r Result) OK() bool {
	return r.Skip == SkipNone
}

// Config tunes the dispatcher.
type Config struct {
	Timeout time.Duration
}

// Dispatcher fetches and normalizes every source of a batch in parallel.
type Dispatcher struct {
	fetcher feed.Fetcher
	limiter feed.Limiter
	clock   feed.Clock
	cfg     Config
	logger  *zap.Logger
}

// New creates a Dispatcher. limiter may be nil.
func New(fetcher feed.Fetcher, limiter feed.Limiter, clock feed.Clock, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	metrics.Init()
	return &Dispatcher{
		fetcher: fetcher,
		limiter: limiter,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.Named("dispatcher"),
	}
}

// Run processes all sources concurrently and returns one result per source, in input
// order. It returns once every source has finished or hit its own timeout. Cancelling
// ctx does not abort fetches already in flight.
func (d *Dispatcher) Run(ctx context.Context, sources []feed.Source) []Result {
	results := make([]Result, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(slot int, src feed.Source) {
			defer wg.Done()
			results[slot] = d.fetchSource(ctx, src)
		}(i, src)
	}
	wg.Wait()
	return results
}

// Collect runs the batch and concatenates the entries of successful sources.
func (d *Dispatcher) Collect(ctx context.Context, sources []feed.Source) []feed.Entry {
	return Entries(d.Run(ctx, sources))
}

// Entries flattens results in source order.
func Entries(results []Result) []feed.Entry {
	var total int
	for _, r := range results {
		total += len(r.Entries)
	}
	entries := make([]feed.Entry, 0, total)
	for _, r := range results {
		entries = append(entries, r.Entries...)
	}
	return entries
}

func (d *Dispatcher) fetchSource(parent context.Context, src feed.Source) Result {
	url := strings.TrimSpace(src.URL)
	if url == "" {
		d.logger.Debug("source has no url", zap.String("source", src.Key))
		return Result{Source: src, Format: feed.FormatUnknown, Skip: SkipEmptyURL}
	}

	// The deadline is armed here and released on every return path.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.cfg.Timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "dispatcher.fetch_source", trace.WithAttributes(
		attribute.String("feed.source", src.Key),
		attribute.String("url.full", url),
	))
	defer span.End()

	start := time.Now()
	result, bytesFetched := d.process(ctx, url, src)
	result.Duration = time.Since(start)
	d.observe(url, result, bytesFetched)

	span.SetAttributes(
		attribute.String("feed.format", string(result.Format)),
		attribute.Int("feed.entries", len(result.Entries)),
	)
	if !result.OK() {
		span.SetStatus(codes.Error, string(result.Skip))
	}
	return result
}

func (d *Dispatcher) process(ctx context.Context, url string, src feed.Source) (Result, int) {
	result := Result{Source: src, Format: feed.FormatUnknown}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, url); err != nil {
			return d.skip(result, SkipRateLimited, err), 0
		}
	}

	resp, err := d.fetcher.Fetch(ctx, feed.FetchRequest{URL: url, Timeout: d.cfg.Timeout})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return d.skip(result, SkipTimeout, err), 0
		}
		return d.skip(result, SkipFetchError, err), 0
	}
	if !resp.OK() {
		return d.skip(result, SkipHTTPStatus, fmt.Errorf("unexpected status %d", resp.StatusCode)), len(resp.Body)
	}

	normalized, err := normalize.Normalize(resp.Body, src, d.clock.Now())
	result.Format = normalized.Format
	if err != nil {
		return d.skip(result, SkipUnrecognizedFormat, err), len(resp.Body)
	}
	if normalized.Format == feed.FormatUnknown {
		return d.skip(result, SkipUnrecognizedFormat, errors.New("document is neither rss nor atom")), len(resp.Body)
	}

	result.Entries = backfill(normalized.Entries, src)
	d.logger.Debug("source fetched",
		zap.String("source", src.Key),
		zap.String("format", string(result.Format)),
		zap.Int("entries", len(result.Entries)),
	)
	return result, len(resp.Body)
}

func (d *Dispatcher) skip(result Result, reason SkipReason, err error) Result {
	result.Skip = reason
	result.Err = err
	d.logger.Warn("source skipped",
		zap.String("source", result.Source.Key),
		zap.String("url", result.Source.URL),
		zap.String("reason", string(reason)),
		zap.Error(err),
	)
	return result
}

func (d *Dispatcher) observe(url string, result Result, bytesFetched int) {
	outcome := string(result.Skip)
	if result.OK() {
		outcome = "success"
		metrics.ObserveEntriesNormalized(string(result.Format), len(result.Entries))
	}
	metrics.ObserveSourceFetch(url, outcome, bytesFetched, result.Duration)
}

// backfill fills the source title from the configured display name and the author
// from the (possibly backfilled) source title.
func backfill(entries []feed.Entry, src feed.Source) []feed.Entry {
	name := src.DisplayName()
	for i := range entries {
		if entries[i].SourceTitle == "" {
			entries[i].SourceTitle = name
		}
		if entries[i].Author == "" {
			entries[i].Author = entries[i].SourceTitle
		}
	}
	return entries
}
