// Package feed defines core types shared across the aggregation pipeline.
package feed

import (
	"time"
)

// Format identifies the syndication format a source document was recognized as.
type Format string

// Recognized source formats.
const (
	FormatUnknown Format = "unknown"
	FormatRSS     Format = "rss"
	FormatAtom    Format = "atom"
)

// Source is one configured feed taken from the sources document.
type Source struct {
	Key  string   `json:"key"`
	Name string   `json:"name"`
	URL  string   `json:"url"`
	Tags []string `json:"tags,omitempty"`
}

// DisplayName returns the configured name, falling back to the document key.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Key
}

// Entry is the format-independent representation of one syndicated item.
type Entry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Author      string    `json:"author,omitempty"`
	SourceTitle string    `json:"source_title,omitempty"`
	SourceLink  string    `json:"source_link,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Metadata describes the aggregated output feed itself.
type Metadata struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Link     string `json:"link,omitempty"`
}

// FetchRequest captures everything needed to fetch one source document.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
