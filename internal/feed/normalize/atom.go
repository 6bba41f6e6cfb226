package normalize

import (
	"time"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
	"github.com/JakeFAU/feed-aggregator/internal/feed/xmltree"
)

const atomPrefix = "atom:"

// AtomRules is the field fallback policy for Atom entries. Each field is also looked up
// under the atom: prefix for documents that namespace every element.
var AtomRules = Rules{
	ID:      Chain{atomText("id"), atomLink("link"), atomText("title")},
	Link:    Chain{atomLink("link")},
	Title:   Chain{atomText("title")},
	Date:    Chain{atomText("updated"), atomText("published")},
	Summary: Chain{atomText("content"), atomText("summary")},
	Author:  Chain{atomAuthorName, atomText("author")},
}

// Atom normalizes the entries of a feed (or atom:feed) root in document order.
func Atom(root xmltree.Value, tags []string, now time.Time) []feed.Entry {
	doc := atomField(root, "feed")
	if doc.IsAbsent() {
		doc = root
	}
	src := sourceInfo{
		title: Chain{atomText("title")}.Value(doc),
		link:  Chain{atomLink("link")}.Value(doc),
	}
	return buildEntries(xmltree.AsList(atomField(doc, "entry")), AtomRules, src, tags, now)
}

func atomField(v xmltree.Value, name string) xmltree.Value {
	if f := v.Field(name); !f.IsAbsent() {
		return f
	}
	return v.Field(atomPrefix + name)
}

func atomText(name string) Attempt {
	return func(item xmltree.Value) (string, bool) {
		return xmltree.ExtractText(atomField(item, name))
	}
}

func atomLink(name string) Attempt {
	return func(item xmltree.Value) (string, bool) {
		return xmltree.ExtractLink(atomField(item, name))
	}
}

// atomAuthorName reads author/name, taking the first author that has one.
func atomAuthorName(item xmltree.Value) (string, bool) {
	for _, author := range xmltree.AsList(atomField(item, "author")) {
		if name, ok := xmltree.ExtractText(atomField(author, "name")); ok {
			return name, true
		}
	}
	return "", false
}
