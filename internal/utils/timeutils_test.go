package utils

import (
	"testing"
	"time"
)

func TestParseTimestampRFC3339(t *testing.T) {
	got, err := ParseTimestamp("2024-03-01T10:02:00Z", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 1, 10, 2, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseTimestampEmpty(t *testing.T) {
	if _, err := ParseTimestamp("   ", time.Time{}); err == nil {
		t.Fatalf("expected error for empty value")
	}
}

func TestDurationSeconds(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	if got := DurationSeconds(start, end); got != 90 {
		t.Fatalf("expected 90, got %v", got)
	}
	if got := DurationSeconds(end, start); got != 90 {
		t.Fatalf("expected swapped order to yield 90, got %v", got)
	}
	if got := DurationSeconds(time.Time{}, end); got != 0 {
		t.Fatalf("expected zero for unset start, got %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("expected abc..., got %q", got)
	}
	if got := Truncate("ééééé", 4); got != "é..." {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}
