package util

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	got, ok := ParseDay("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseDayRFC3339(t *testing.T) {
	got, ok := ParseDay("2024-10-10T15:04:05Z")
	if !ok {
		t.Fatalf("expected ok")
	}
	if DayKey(got) != "2024-10-10" {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseDayDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	got := ParseDayDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 10, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 10, 13, 1, 0, 0, 0, time.UTC)
	if d := DaysBetween(a, b); d != 3 {
		t.Fatalf("expected 3 days, got %d", d)
	}
	if d := DaysBetween(b, a); d != -3 {
		t.Fatalf("expected -3 days, got %d", d)
	}
}
