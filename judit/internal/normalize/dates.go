package normalize

import (
	"math"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseDate accepts the date shapes seen in provider payloads: ISO 8601 with
// or without zone, Brazilian dd/mm/yyyy, and numeric epochs in seconds,
// milliseconds, microseconds or nanoseconds (picked by magnitude). Zone-less
// values are UTC. Anything outside years 1 to 9999 is unparsable.
func ParseDate(v any) (time.Time, bool) {
	if f, ok := v.(float64); ok {
		return fromEpoch(f)
	}
	s := asString(v)
	if s == "" {
		return time.Time{}, false
	}
	if f, ok := asFloat(s); ok && !strings.ContainsAny(s, "-/:") {
		return fromEpoch(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inRange(t.UTC())
		}
	}
	return time.Time{}, false
}

const (
	epochMillisMin = 1e12
	epochMicros    = 1e14
	epochNanos     = 1e17
)

func fromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f >= math.MaxInt64 {
		return time.Time{}, false
	}
	var t time.Time
	switch {
	case f >= epochNanos:
		t = time.Unix(0, int64(f))
	case f >= epochMicros:
		t = time.UnixMicro(int64(f))
	case f > epochMillisMin:
		t = time.UnixMilli(int64(f))
	default:
		t = time.Unix(int64(f), 0)
	}
	return inRange(t.UTC())
}

// inRange rejects years that cannot be rendered as RFC 3339.
func inRange(t time.Time) (time.Time, bool) {
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// dateOf parses the first alias that yields a valid date. Aliases whose value
// does not parse are skipped so that a garbage "date" does not hide a good
// "created_at".
func dateOf(m map[string]any, keys Aliases) *time.Time {
	for _, k := range keys {
		if t, ok := ParseDate(m[k]); ok {
			return &t
		}
	}
	return nil
}
