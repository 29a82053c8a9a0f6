package scheduling

import (
	"context"
	"time"

	"github.com/omnichat/relay/pkg/domain"
)

// CalendarProvider is the external collaborator this package needs. A real
// implementation lives outside this module (Google Calendar, Outlook, ...);
// this package only defines the narrow contract and a single deterministic
// commit semantics it depends on: CreateEvent must be safe to retry with
// the same dedupKey without producing a second event.
type CalendarProvider interface {
	// BusyIntervals returns the provider's busy windows overlapping
	// [from, to), used to carve free slots out of the working-hours window.
	BusyIntervals(ctx context.Context, from, to time.Time) ([]domain.Slot, error)

	// CreateEvent commits start/end as a calendar event for attendees,
	// passing dedupKey through as an idempotency key when the provider
	// supports one natively. Returns the provider's event id and any
	// meeting/calendar URLs it generates.
	CreateEvent(ctx context.Context, dedupKey string, start, end time.Time, attendees []string) (ProviderEvent, error)
}

// ProviderEvent is what a successful CreateEvent call returns.
type ProviderEvent struct {
	EventID     string
	MeetingURL  string
	CalendarURL string
}
