package httpapi

import (
	"testing"
	"time"
)

func TestValidateDateRangeRejectsFutureDates(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-48 * time.Hour)
	if err := validateDateRange(past, future); err == nil {
		t.Error("expected future end_date to be rejected")
	}
}

func TestValidateDateRangeRejectsInvertedRange(t *testing.T) {
	start := time.Now().Add(-24 * time.Hour)
	end := start.Add(-1 * time.Hour)
	if err := validateDateRange(start, end); err == nil {
		t.Error("expected end_date before start_date to be rejected")
	}
}

func TestValidateDateRangeAcceptsValidRange(t *testing.T) {
	end := time.Now().Add(-1 * time.Hour)
	start := end.Add(-24 * time.Hour)
	if err := validateDateRange(start, end); err != nil {
		t.Errorf("unexpected error for a valid range: %v", err)
	}
}

func TestParseRFC3339RejectsEmpty(t *testing.T) {
	if _, err := parseRFC3339(""); err == nil {
		t.Error("expected empty timestamp to error")
	}
}

func TestParseRFC3339AcceptsValidTimestamp(t *testing.T) {
	if _, err := parseRFC3339("2026-01-15T10:00:00Z"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
