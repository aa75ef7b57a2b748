package utils

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Microsecond, "2ms"},
		{1234 * time.Millisecond, "1.23s"},
		{90*time.Second + 400*time.Millisecond, "1m30s"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}

func TestEstimateRemaining(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		done     int
		total    int
		expected time.Duration
	}{
		{"nothing done", time.Minute, 0, 10, 0},
		{"half done", 10 * time.Minute, 5, 10, 10 * time.Minute},
		{"one of four", 3 * time.Minute, 1, 4, 9 * time.Minute},
		{"all done", time.Hour, 4, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateRemaining(tt.elapsed, tt.done, tt.total); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
