// Package pipeline wires fetch, aggregation and rendering into one transformation
// from a source list to an Atom document.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/dispatcher"
	"github.com/JakeFAU/feed-aggregator/internal/feed"
	"github.com/JakeFAU/feed-aggregator/internal/feed/aggregate"
	"github.com/JakeFAU/feed-aggregator/internal/feed/render"
	"github.com/JakeFAU/feed-aggregator/internal/metrics"
)

var tracer = otel.Tracer("github.com/JakeFAU/feed-aggregator/internal/pipeline")

// Bounds for the caller-supplied window and item limits.
const (
	DefaultWindowDays = 60
	MinWindowDays     = 1
	MaxWindowDays     = 3650

	DefaultMaxItems = 200
	MinMaxItems     = 1
	MaxMaxItems     = 1000
)

// Runner is the fan-out step of the pipeline.
type Runner interface {
	Run(ctx context.Context, sources []feed.Source) []dispatcher.Result
}

// Request describes one aggregation. WindowDays and MaxItems are expected to be
// clamped by the caller.
type Request struct {
	Sources    []feed.Source
	Metadata   feed.Metadata
	WindowDays int
	MaxItems   int
}

// Output is the rendered document and the per-source outcomes behind it.
type Output struct {
	Document string
	Entries  int
	Results  []dispatcher.Result
}

// Pipeline builds aggregated feeds.
type Pipeline struct {
	runner Runner
	clock  feed.Clock
	logger *zap.Logger
}

// New creates a Pipeline.
func New(runner Runner, clock feed.Clock, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{runner: runner, clock: clock, logger: logger.Named("pipeline")}
}

// Build fetches every source, keeps the entries inside the window, ranks and truncates
// them, and renders the result. Source failures only reduce the entry count; the sole
// error is a render failure.
func (p *Pipeline) Build(ctx context.Context, req Request) (Output, error) {
	ctx, span := tracer.Start(ctx, "pipeline.build")
	defer span.End()

	results := p.runner.Run(ctx, req.Sources)
	now := p.clock.Now()

	selected := aggregate.Select(dispatcher.Entries(results), aggregate.Cutoff(now, req.WindowDays), req.MaxItems)
	span.SetAttributes(
		attribute.Int("feed.sources", len(req.Sources)),
		attribute.Int("feed.entries", len(selected)),
	)
	doc, err := render.Atom(selected, req.Metadata, now)
	if err != nil {
		metrics.ObserveRender("error", 0)
		span.SetStatus(codes.Error, err.Error())
		return Output{Results: results}, fmt.Errorf("render feed: %w", err)
	}
	metrics.ObserveRender("success", len(selected))

	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	p.logger.Info("feed built",
		zap.Int("sources", len(req.Sources)),
		zap.Int("sources_skipped", failed),
		zap.Int("entries", len(selected)),
		zap.Int("window_days", req.WindowDays),
		zap.Int("max_items", req.MaxItems),
	)
	return Output{Document: doc, Entries: len(selected), Results: results}, nil
}

// Clamp parses raw as a number and bounds it to [minValue, maxValue]. Blank,
// non-numeric or non-finite input yields fallback. Fractions are truncated after
// clamping.
func Clamp(raw string, fallback, minValue, maxValue int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return int(math.Min(float64(maxValue), math.Max(float64(minValue), v)))
}

// ClampInt bounds v to [minValue, maxValue].
func ClampInt(v, minValue, maxValue int) int {
	return min(max(v, minValue), maxValue)
}
