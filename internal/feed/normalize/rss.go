package normalize

import (
	"time"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
	"github.com/JakeFAU/feed-aggregator/internal/feed/xmltree"
)

// RSSRules is the field fallback policy for RSS items.
var RSSRules = Rules{
	ID:      Chain{TextOf("guid"), LinkOf("link"), TextOf("title")},
	Link:    Chain{LinkOf("link")},
	Title:   Chain{TextOf("title")},
	Date:    Chain{TextOf("pubDate"), TextOf("dc:date")},
	Summary: Chain{TextOf("content:encoded"), TextOf("description"), TextOf("summary")},
	Author:  Chain{TextOf("author"), TextOf("dc:creator")},
}

// RSS normalizes the items of an rss.channel (or bare channel) root in document order.
func RSS(root xmltree.Value, tags []string, now time.Time) []feed.Entry {
	channel := root.Path("rss", "channel")
	if channel.IsAbsent() {
		channel = root.Field("channel")
	}
	if channel.IsAbsent() {
		return nil
	}
	src := sourceInfo{
		title: Chain{TextOf("title")}.Value(channel),
		link:  Chain{LinkOf("link")}.Value(channel),
	}
	return buildEntries(xmltree.AsList(channel.Field("item")), RSSRules, src, tags, now)
}
