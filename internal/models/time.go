package models

import "time"

// The backend emits RFC 3339 when a zone is attached, and plain date-times
// from naive datetimes otherwise. Naive layouts are interpreted in the
// client's local zone.
var (
	zonedLayouts = []string{time.RFC3339Nano}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
)

// ParseTimestamp parses a server timestamp string. Returns false when the
// string is empty or matches no known layout.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
