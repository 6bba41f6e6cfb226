package normalize

import (
	"github.com/JakeFAU/feed-aggregator/internal/feed/xmltree"
)

// Attempt extracts one candidate for a logical field from an item.
type Attempt func(item xmltree.Value) (string, bool)

// Chain is an ordered list of attempts; the first non-empty candidate wins.
type Chain []Attempt

// Resolve evaluates the chain against item.
func (c Chain) Resolve(item xmltree.Value) (string, bool) {
	for _, attempt := range c {
		if v, ok := attempt(item); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Value resolves the chain and returns "" when no attempt succeeds.
func (c Chain) Value(item xmltree.Value) string {
	v, _ := c.Resolve(item)
	return v
}

// TextOf extracts text from the field reached by path.
func TextOf(path ...string) Attempt {
	return func(item xmltree.Value) (string, bool) {
		return xmltree.ExtractText(item.Path(path...))
	}
}

// LinkOf extracts a link from the field reached by path.
func LinkOf(path ...string) Attempt {
	return func(item xmltree.Value) (string, bool) {
		return xmltree.ExtractLink(item.Path(path...))
	}
}

// Rules holds the fallback chain for every entry field a format supplies.
type Rules struct {
	ID      Chain
	Link    Chain
	Title   Chain
	Date    Chain
	Summary Chain
	Author  Chain
}
