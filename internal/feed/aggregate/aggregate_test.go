package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func entry(id string, age time.Duration) feed.Entry {
	return feed.Entry{ID: id, Title: id, Link: "https://example.com/" + id, UpdatedAt: now.Add(-age)}
}

func ids(entries []feed.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestCutoff(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), Cutoff(now, 30))
	require.Equal(t, now.Add(-24*time.Hour), Cutoff(now, 1))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	cutoff := Cutoff(now, 7)

	tests := []struct {
		name     string
		entries  []feed.Entry
		maxItems int
		want     []string
	}{
		{
			name:     "orders newest first",
			entries:  []feed.Entry{entry("old", 3*day), entry("new", time.Hour), entry("mid", day)},
			maxItems: 10,
			want:     []string{"new", "mid", "old"},
		},
		{
			name:     "cutoff is inclusive",
			entries:  []feed.Entry{entry("edge", 7*day), entry("outside", 7*day+time.Millisecond)},
			maxItems: 10,
			want:     []string{"edge"},
		},
		{
			name:     "ties keep input order",
			entries:  []feed.Entry{entry("b", day), entry("a", day), entry("c", day)},
			maxItems: 10,
			want:     []string{"b", "a", "c"},
		},
		{
			name:     "truncates after sorting",
			entries:  []feed.Entry{entry("3", 3*time.Hour), entry("1", time.Hour), entry("2", 2*time.Hour)},
			maxItems: 2,
			want:     []string{"1", "2"},
		},
		{
			name:     "zero timestamps dropped",
			entries:  []feed.Entry{{ID: "zero", Title: "z", Link: "l"}, entry("ok", day)},
			maxItems: 10,
			want:     []string{"ok"},
		},
		{
			name:     "zero max items",
			entries:  []feed.Entry{entry("x", day)},
			maxItems: 0,
			want:     []string{},
		},
		{
			name:     "empty input",
			maxItems: 5,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Select(tt.entries, cutoff, tt.maxItems)
			assert.Equal(t, tt.want, ids(got))
			assert.LessOrEqual(t, len(got), tt.maxItems)
		})
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []feed.Entry{entry("old", 48*time.Hour), entry("new", time.Hour)}
	_ = Select(in, Cutoff(now, 7), 1)
	require.Equal(t, []string{"old", "new"}, ids(in))
}

func TestSelectWindowAndLimit(t *testing.T) {
	t.Parallel()

	// 40 entries spaced 12 hours apart; a 7 day window keeps 15 of them
	// (ages 0h..168h inclusive) and the limit trims to 10.
	var in []feed.Entry
	for i := range 40 {
		in = append(in, entry(string(rune('a'+i%26))+string(rune('0'+i/26)), time.Duration(i)*12*time.Hour))
	}
	got := Select(in, Cutoff(now, 7), 10)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].UpdatedAt.After(got[i-1].UpdatedAt))
	}
	assert.Equal(t, now, got[0].UpdatedAt)

	all := Select(in, Cutoff(now, 7), 100)
	assert.Len(t, all, 15)
}
