package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryProvider_CreateEventIsIdempotentOnDedupKey(t *testing.T) {
	p := NewInMemoryProvider("https://meet.example.com")
	ctx := context.Background()
	start := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	first, err := p.CreateEvent(ctx, "dedup-1", start, end, []string{"x@y.com"})
	require.NoError(t, err)

	second, err := p.CreateEvent(ctx, "dedup-1", start, end, []string{"x@y.com"})
	require.NoError(t, err)

	assert.Equal(t, first, second, "retrying the same dedup key must not mint a second event")
}

func TestInMemoryProvider_CreateEventMarksIntervalBusy(t *testing.T) {
	p := NewInMemoryProvider("https://meet.example.com")
	ctx := context.Background()
	start := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	_, err := p.CreateEvent(ctx, "dedup-2", start, end, []string{"x@y.com"})
	require.NoError(t, err)

	busy, err := p.BusyIntervals(ctx, start.Add(-time.Hour), end.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, start, busy[0].Start)
	assert.Equal(t, end, busy[0].End)
}

func TestInMemoryProvider_BusyIntervalsExcludesNonOverlapping(t *testing.T) {
	p := NewInMemoryProvider("https://meet.example.com")
	ctx := context.Background()
	start := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	_, err := p.CreateEvent(ctx, "dedup-3", start, end, nil)
	require.NoError(t, err)

	busy, err := p.BusyIntervals(ctx, end.Add(time.Hour), end.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, busy)
}
