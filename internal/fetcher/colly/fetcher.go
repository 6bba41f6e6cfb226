// Package collyfetcher implements feed.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
)

const (
	defaultTimeout      = 12 * time.Second
	defaultMaxBodyBytes = 10 << 20
	acceptFeeds         = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodyBytes  int
}

// Fetcher implements feed.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// Clones share the HTTP backend, so the client timeout is fixed here and
	// per-request limits are applied through the context.
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.SetRequestTimeout(timeout)
	c.MaxBodySize = cfg.MaxBodyBytes
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = defaultMaxBodyBytes
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	// Non-2xx responses are reported as results, not errors.
	c.ParseHTTPErrorResponse = true
	// Clones share the visited-URL store; every fetch is independent.
	c.AllowURLRevisit = true

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Any status code is returned as a
// response; only transport failures and cancellation are errors.
func (f *Fetcher) Fetch(ctx context.Context, request feed.FetchRequest) (feed.FetchResponse, error) {
	var (
		result   feed.FetchResponse
		fetchErr error
	)
	if request.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, request.Timeout)
		defer cancel()
	}
	start := time.Now()
	collector := f.buildCollector(ctx, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return feed.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	start time.Time,
	result *feed.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}

	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *feed.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptFeeds)
	})

	hooks.OnResponse(func(r *colly.Response) {
		body := append([]byte(nil), r.Body...)
		if r.Headers != nil && transcodedByColly(r.Headers.Get("Content-Type")) {
			body = declareUTF8(body)
		}
		*result = feed.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       body,
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// transcodedByColly reports whether colly has already converted the body to UTF-8,
// which it does when the Content-Type names a charset other than UTF-8.
func transcodedByColly(contentType string) bool {
	if contentType == "" {
		return false
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	cs := strings.ToLower(strings.TrimSpace(params["charset"]))
	return cs != "" && cs != "utf-8" && cs != "utf8"
}

var xmlEncodingDecl = regexp.MustCompile(`^(\s*<\?xml[^>]*?\sencoding\s*=\s*)(?:"[^"]*"|'[^']*')`)

// declareUTF8 rewrites the XML declaration's encoding to UTF-8 so the bytes are not
// decoded a second time.
func declareUTF8(body []byte) []byte {
	return xmlEncodingDecl.ReplaceAll(body, []byte(`${1}"UTF-8"`))
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}
