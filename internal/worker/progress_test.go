package worker

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProgressZeroTotalWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(0, true)
	p.out = &buf

	require.NotPanics(t, p.Done, "finishing an empty batch must not panic")
	require.Empty(t, buf.String())

	p.Update(0, 0, 0)
	require.NotPanics(t, p.Done)
	require.Empty(t, buf.String())
}

func TestProgressRendersBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(4, true)
	p.out = &buf

	p.Update(2, 4, 1)

	out := buf.String()
	require.Contains(t, out, "2/4 tiles")
	require.Contains(t, out, "(1 failed)")
	require.Contains(t, out, "[===============")
}

func TestProgressAdoptsTotalFromUpdate(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(0, true)
	p.out = &buf

	p.Update(1, 10, 0)
	require.Contains(t, buf.String(), "1/10 tiles")
}

func TestProgressDisabledStillTracks(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(2, false)
	p.out = &buf

	p.Update(1, 2, 0)
	p.Done()

	require.Empty(t, buf.String())
	require.Contains(t, p.Summary(), "1/2 tiles")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{65 * time.Minute, "1h05m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}
