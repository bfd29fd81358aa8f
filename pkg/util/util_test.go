package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	for _, input := range []string{
		"2026-03-14T09:30:00Z",
		strconv.FormatInt(want.Unix(), 10),
	} {
		got, ok := ParseTime(input)
		if !ok {
			t.Fatalf("ParseTime(%q) not ok", input)
		}
		if got.Unix() != want.Unix() {
			t.Fatalf("ParseTime(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "yesterday", "-5"} {
		if _, ok := ParseTime(input); ok {
			t.Fatalf("ParseTime(%q) unexpectedly ok", input)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("whale flow", 5); got != "whale" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("anything", 0); got != "" {
		t.Fatalf("got %q", got)
	}
	// rune boundary, not byte boundary
	if got := TruncateRunes("консенсус", 4); got != "конс" {
		t.Fatalf("got %q", got)
	}
}
