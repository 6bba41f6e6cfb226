// Package normalize maps parsed RSS and Atom documents onto canonical feed entries.
package normalize

import (
	"fmt"
	"slices"
	"time"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
	"github.com/JakeFAU/feed-aggregator/internal/feed/xmltree"
)

// Result is the outcome of normalizing one source document.
type Result struct {
	Format  feed.Format
	Entries []feed.Entry
}

// Normalize parses data, detects its format, and returns the canonical entries it
// contains. Unparseable input returns an error and no entries; a well-formed document
// with neither an RSS nor an Atom root returns FormatUnknown and no entries.
func Normalize(data []byte, src feed.Source, now time.Time) (Result, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return Result{Format: feed.FormatUnknown}, fmt.Errorf("parse feed: %w", err)
	}
	return NormalizeTree(root, src, now), nil
}

// NormalizeTree dispatches an already parsed document to the matching normalizer.
func NormalizeTree(root xmltree.Value, src feed.Source, now time.Time) Result {
	switch Detect(root) {
	case feed.FormatRSS:
		return Result{Format: feed.FormatRSS, Entries: RSS(root, src.Tags, now)}
	case feed.FormatAtom:
		return Result{Format: feed.FormatAtom, Entries: Atom(root, src.Tags, now)}
	default:
		return Result{Format: feed.FormatUnknown}
	}
}

// Detect reports which format the document root looks like.
func Detect(root xmltree.Value) feed.Format {
	switch {
	case !root.Field("rss").IsAbsent(), !root.Field("channel").IsAbsent():
		return feed.FormatRSS
	case !root.Field("feed").IsAbsent(), !root.Field("atom:feed").IsAbsent():
		return feed.FormatAtom
	default:
		return feed.FormatUnknown
	}
}

type sourceInfo struct {
	title string
	link  string
}

func buildEntries(items []xmltree.Value, rules Rules, src sourceInfo, tags []string, now time.Time) []feed.Entry {
	entries := make([]feed.Entry, 0, len(items))
	for _, item := range items {
		entry, ok := buildEntry(item, rules, src, tags, now)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func buildEntry(item xmltree.Value, rules Rules, src sourceInfo, tags []string, now time.Time) (feed.Entry, bool) {
	title := rules.Title.Value(item)
	link := rules.Link.Value(item)
	if title == "" || link == "" {
		return feed.Entry{}, false
	}
	return feed.Entry{
		ID:          rules.ID.Value(item),
		Title:       title,
		Link:        link,
		Summary:     rules.Summary.Value(item),
		UpdatedAt:   ResolveDate(rules.Date.Value(item), now),
		Author:      rules.Author.Value(item),
		SourceTitle: src.title,
		SourceLink:  src.link,
		Tags:        slices.Clone(tags),
	}, true
}
