package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TimestampLayout renders instants as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"Mon, 2 January 2006 15:04:05 -0700",
	"Mon, 2 January 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	time.RubyDate,
	"January 2, 2006 15:04:05 MST",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006 15:04 MST",
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"Jan 2 2006",
}

// Offsets for the North American zone names RFC 822 allows. time.Parse gives unknown
// abbreviations a zero offset.
var rfc822Zones = map[string]int{
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

var ymdPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDate parses a feed timestamp. The common feed layouts are tried first, then
// dateparse for everything else, then a strict YYYY-MM-DD read as UTC midnight.
// Values without a zone are read as UTC. ok is false when nothing matched.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	// RFC 822 "UT" is universal time; Go only knows "UTC".
	if strings.HasSuffix(raw, " UT") {
		raw += "C"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return fixZone(t).UTC(), true
		}
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		return fixZone(t).UTC(), true
	}
	if ymdPattern.MatchString(raw) {
		if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResolveDate parses raw and falls back to now when it cannot be parsed.
func ResolveDate(raw string, now time.Time) time.Time {
	if t, ok := ParseDate(raw); ok {
		return t
	}
	return now.UTC()
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func fixZone(t time.Time) time.Time {
	name, offset := t.Zone()
	want, ok := rfc822Zones[name]
	if !ok || offset == want {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, want))
}
