package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/domain"
)

// NextWorkingDays returns the next n dates (at local midnight in wh's
// timezone, starting from "today" if it is itself a working day) that fall
// on one of wh's configured weekdays — the "next N working days" the slot
// picker signal presents to the customer's UI (spec §4.7).
func NextWorkingDays(wh config.WorkingHours, from time.Time, n int) ([]time.Time, error) {
	loc, err := time.LoadLocation(wh.Location)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", wh.Location, err)
	}
	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	weekdays := make(map[time.Weekday]bool, len(wh.Weekdays))
	for _, w := range wh.Weekdays {
		weekdays[w] = true
	}

	out := make([]time.Time, 0, n)
	for len(out) < n {
		if weekdays[day.Weekday()] {
			out = append(out, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

// FreeSlots partitions date's working-hours window into fixed-duration
// slots, removes any slot overlapping a busy interval or already in the
// past, and returns what remains (spec §4.7 availability query). date must
// be midnight local time, as returned by NextWorkingDays.
func FreeSlots(ctx context.Context, provider CalendarProvider, wh config.WorkingHours, duration time.Duration, now, date time.Time) ([]domain.Slot, error) {
	loc, err := time.LoadLocation(wh.Location)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", wh.Location, err)
	}

	windowStart := time.Date(date.Year(), date.Month(), date.Day(), wh.StartHour, 0, 0, 0, loc)
	windowEnd := time.Date(date.Year(), date.Month(), date.Day(), wh.EndHour, 0, 0, 0, loc)
	if !windowEnd.After(windowStart) || duration <= 0 {
		return nil, nil
	}

	busy, err := provider.BusyIntervals(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("fetch busy intervals: %w", err)
	}

	var free []domain.Slot
	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(duration) {
		end := start.Add(duration)
		if !end.After(now) {
			continue // past instant, pruned per spec
		}
		if overlapsAny(start, end, busy) {
			continue
		}
		free = append(free, domain.Slot{Start: start, End: end})
	}
	return free, nil
}

func overlapsAny(start, end time.Time, busy []domain.Slot) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
