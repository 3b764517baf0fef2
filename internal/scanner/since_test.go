package scanner

import (
	"errors"
	"testing"
	"time"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	got, err := ParseSince("", now)
	if err != nil || !got.IsZero() {
		t.Errorf("Empty expression: got %v, %v", got, err)
	}

	got, err = ParseSince("2026-03-14T10:00:00Z", now)
	if err != nil {
		t.Fatalf("RFC3339: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("RFC3339: got %v", got)
	}

	got, err = ParseSince("90m", now)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if !got.Equal(now.Add(-90 * time.Minute)) {
		t.Errorf("duration: got %v", got)
	}

	got, err = ParseSince("2 hours ago", now)
	if err != nil {
		t.Fatalf("natural language: %v", err)
	}
	if !got.Before(now) || now.Sub(got) > 3*time.Hour {
		t.Errorf("natural language: got %v", got)
	}
}

func TestParseSince_Invalid(t *testing.T) {
	if _, err := ParseSince("qwzx", time.Now()); !errors.Is(err, ErrInvalidSince) {
		t.Errorf("Expected ErrInvalidSince, got %v", err)
	}
}
