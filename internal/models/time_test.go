package models

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"rfc3339", "2026-08-30T12:00:00Z", true},
		{"rfc3339 with offset", "2026-08-30T12:00:00+02:00", true},
		{"naive isoformat", "2026-08-30T12:00:00.123456", true},
		{"naive without fraction", "2026-08-30T12:00:00", true},
		{"space separated", "2026-08-30 12:00:00", true},
		{"empty", "", false},
		{"garbage", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseTimestamp(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q): expected ok=%v, got %v", tt.input, tt.ok, ok)
			}
			if ok && parsed.IsZero() {
				t.Errorf("ParseTimestamp(%q) returned a zero time", tt.input)
			}
		})
	}
}

func TestParseTimestampNaiveUsesLocalZone(t *testing.T) {
	for _, input := range []string{"2026-08-30T12:00:00", "2026-08-30 12:00:00"} {
		parsed, ok := ParseTimestamp(input)
		if !ok {
			t.Fatalf("ParseTimestamp(%q) failed", input)
		}
		want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
		if !parsed.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, expected local-zone %v", input, parsed, want)
		}
	}
}

func TestParseTimestampKeepsExplicitZone(t *testing.T) {
	parsed, ok := ParseTimestamp("2026-08-30T12:00:00+02:00")
	if !ok {
		t.Fatal("ParseTimestamp failed")
	}
	want := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if !parsed.Equal(want) {
		t.Errorf("expected instant %v, got %v", want, parsed)
	}
}
