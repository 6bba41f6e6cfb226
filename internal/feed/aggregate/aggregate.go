// Package aggregate filters merged entries to a time window and ranks them by recency.
package aggregate

import (
	"slices"
	"time"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
)

// Cutoff returns the earliest instant included in a window of days ending at now.
func Cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// Select keeps entries updated at or after cutoff, orders them newest first and
// truncates the result to maxItems. Entries with equal timestamps keep their input
// order. Entries without a timestamp are dropped. The input slice is not modified.
func Select(entries []feed.Entry, cutoff time.Time, maxItems int) []feed.Entry {
	kept := make([]feed.Entry, 0, len(entries))
	for _, e := range entries {
		if e.UpdatedAt.IsZero() || e.UpdatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	slices.SortStableFunc(kept, func(a, b feed.Entry) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if maxItems < 0 {
		maxItems = 0
	}
	if len(kept) > maxItems {
		kept = kept[:maxItems]
	}
	return kept
}
