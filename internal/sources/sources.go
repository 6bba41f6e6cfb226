// Package sources reads the TOML document that lists the feeds to aggregate.
//
// The document maps feed keys to descriptors:
//
//	[feeds.golang]
//	name = "The Go Blog"
//	url = "https://go.dev/blog/feed.atom"
//	tags = ["go", "lang"]
//
// name defaults to the key. A descriptor with an empty url is kept; the
// dispatcher reports it as skipped.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
)

// DefaultTimeout bounds a remote document fetch when LoaderConfig leaves it unset.
const DefaultTimeout = 10 * time.Second

var (
	// ErrFetch reports that the document could not be retrieved.
	ErrFetch = errors.New("fetch sources document")
	// ErrDecode reports that the document is not valid TOML of the expected shape.
	ErrDecode = errors.New("decode sources document")
)

type document struct {
	Feeds map[string]descriptor `toml:"feeds"`
}

type descriptor struct {
	Name string   `toml:"name"`
	URL  string   `toml:"url"`
	Tags []string `toml:"tags"`
}

// Parse decodes a sources document. Sources are returned sorted by key.
func Parse(data []byte) ([]feed.Source, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	keys := make([]string, 0, len(doc.Feeds))
	for key := range doc.Feeds {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]feed.Source, 0, len(keys))
	for _, key := range keys {
		d := doc.Feeds[key]
		name := strings.TrimSpace(d.Name)
		if name == "" {
			name = key
		}
		out = append(out, feed.Source{
			Key:  key,
			Name: name,
			URL:  strings.TrimSpace(d.URL),
			Tags: d.Tags,
		})
	}
	return out, nil
}

// LoaderConfig tunes remote document retrieval.
type LoaderConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// Loader retrieves sources documents from http(s) URLs or the local filesystem.
// It satisfies feed.SourceLoader.
type Loader struct {
	client *resty.Client
	logger *zap.Logger
}

// NewLoader builds a Loader.
func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Loader{client: client, logger: logger.Named("sources")}
}

// Load reads and parses the document at location. Failures to obtain the document
// wrap ErrFetch; malformed documents wrap ErrDecode.
func (l *Loader) Load(ctx context.Context, location string) ([]feed.Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrFetch)
	}

	data, err := l.read(ctx, location)
	if err != nil {
		return nil, err
	}

	srcs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("sources loaded", zap.String("location", location), zap.Int("count", len(srcs)))
	return srcs, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	if isRemote(location) {
		resp, err := l.client.R().SetContext(ctx).Get(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode())
		}
		return resp.Body(), nil
	}

	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return data, nil
}

func isRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
