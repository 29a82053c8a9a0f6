package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/domain"
)

type fakeProvider struct {
	busy []domain.Slot
}

func (f *fakeProvider) BusyIntervals(_ context.Context, _, _ time.Time) ([]domain.Slot, error) {
	return f.busy, nil
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ string, start, end time.Time, _ []string) (ProviderEvent, error) {
	return ProviderEvent{EventID: "evt-1"}, nil
}

func testWorkingHours() config.WorkingHours {
	return config.WorkingHours{
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartHour: 9, EndHour: 11, Location: "UTC",
	}
}

func TestFreeSlots_SubtractsBusyIntervals(t *testing.T) {
	wh := testWorkingHours()
	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // a Monday
	busyStart := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	busyEnd := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{busy: []domain.Slot{{Start: busyStart, End: busyEnd}}}

	slots, err := FreeSlots(context.Background(), provider, wh, time.Hour, date, date)
	require.NoError(t, err)

	for _, s := range slots {
		assert.False(t, s.Start.Before(busyEnd), "the 9-10 slot must be excluded")
	}
	assert.Len(t, slots, 1) // only the 10-11 slot remains
}

func TestFreeSlots_PrunesPastInstants(t *testing.T) {
	wh := testWorkingHours()
	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 3, 10, 30, 0, 0, time.UTC) // past the 9-10 slot
	provider := &fakeProvider{}

	slots, err := FreeSlots(context.Background(), provider, wh, time.Hour, now, date)
	require.NoError(t, err)

	assert.Len(t, slots, 1) // only 10-11 remains, and only because it ends after `now`
}

func TestNextWorkingDays_SkipsWeekends(t *testing.T) {
	wh := testWorkingHours()
	friday := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	days, err := NextWorkingDays(wh, friday, 2)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, time.Friday, days[0].Weekday())
	assert.Equal(t, time.Monday, days[1].Weekday(), "Saturday/Sunday must be skipped")
}
