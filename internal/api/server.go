package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
	digest "github.com/JakeFAU/feed-aggregator/internal/hash/sha256"
	"github.com/JakeFAU/feed-aggregator/internal/metrics"
	"github.com/JakeFAU/feed-aggregator/internal/pipeline"
	"github.com/JakeFAU/feed-aggregator/internal/sources"
)

const atomContentType = "application/atom+xml; charset=utf-8"

// Builder turns a resolved request into a rendered feed.
type Builder interface {
	Build(ctx context.Context, req pipeline.Request) (pipeline.Output, error)
}

// Defaults are the values used when a request leaves a parameter blank.
type Defaults struct {
	SourcesURL         string
	Title              string
	Subtitle           string
	Link               string
	Days               int
	MaxItems           int
	CacheMaxAgeSeconds int
	RequestTimeout     time.Duration
}

// Server wires HTTP handlers to the sources loader and feed pipeline.
type Server struct {
	router   chi.Router
	loader   feed.SourceLoader
	builder  Builder
	defaults Defaults
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(loader feed.SourceLoader, builder Builder, defaults Defaults, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.RequestTimeout <= 0 {
		defaults.RequestTimeout = 60 * time.Second
	}
	metrics.Init()

	s := &Server{
		loader:   loader,
		builder:  builder,
		defaults: defaults,
		logger:   logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(defaults.RequestTimeout))

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	// Only GET is served anywhere, so other methods get 405 even on unknown paths.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
		writeText(w, http.StatusNotFound, "Not Found")
	})

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", s.serveFeed)
	r.Get("/feed", s.serveFeed)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.loader == nil || s.builder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := firstNonEmpty(q.Get("gist"), s.defaults.SourcesURL)
	if location == "" {
		writeText(w, http.StatusBadRequest, "Missing gist url")
		return
	}
	// Only the operator may point the server at local files.
	if gist := q.Get("gist"); strings.TrimSpace(gist) != "" && !isHTTPURL(gist) {
		writeText(w, http.StatusBadRequest, "Invalid gist url")
		return
	}

	srcs, err := s.loader.Load(r.Context(), location)
	switch {
	case errors.Is(err, sources.ErrDecode):
		writeText(w, http.StatusBadRequest, "Invalid gist toml: "+err.Error())
		return
	case err != nil:
		s.logger.Warn("sources document unavailable", zap.String("location", location), zap.Error(err))
		writeText(w, http.StatusBadGateway, "Failed to load gist: "+err.Error())
		return
	}

	req := pipeline.Request{
		Sources: srcs,
		Metadata: feed.Metadata{
			Title:    firstNonEmpty(q.Get("title"), s.defaults.Title, "Aggregated Feed"),
			Subtitle: firstNonEmpty(q.Get("subtitle"), s.defaults.Subtitle),
			Link:     firstNonEmpty(q.Get("link"), s.defaults.Link),
		},
		WindowDays: s.clampParam(q.Get("days"), s.defaults.Days,
			pipeline.DefaultWindowDays, pipeline.MinWindowDays, pipeline.MaxWindowDays),
		MaxItems: s.clampParam(q.Get("limit"), s.defaults.MaxItems,
			pipeline.DefaultMaxItems, pipeline.MinMaxItems, pipeline.MaxMaxItems),
	}

	out, err := s.builder.Build(r.Context(), req)
	if err != nil {
		s.logger.Error("feed render failed", zap.String("location", location), zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Failed to render feed")
		return
	}

	body := []byte(out.Document)
	etag := digest.ETag(body)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.defaults.CacheMaxAgeSeconds))
	w.Header().Set("ETag", etag)
	if digest.MatchesIfNoneMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", atomContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write feed failed", zap.Error(err))
	}
}

// clampParam resolves a query value against the configured default, then the
// built-in fallback, and bounds the result.
func (s *Server) clampParam(raw string, configured, fallback, minValue, maxValue int) int {
	if configured > 0 {
		fallback = pipeline.ClampInt(configured, minValue, maxValue)
	}
	return pipeline.Clamp(raw, fallback, minValue, maxValue)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("request_id", requestID(r.Context())))
				writeText(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
