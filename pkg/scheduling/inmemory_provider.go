package scheduling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/omnichat/relay/pkg/domain"
)

// InMemoryProvider is the in-process CalendarProvider reference
// implementation: sufficient to demonstrate the dedup-key idempotency
// contract end to end without a real vendor integration (Google
// Calendar/Outlook are out of scope per spec §1). Booked events live only
// for the life of the process; baseURL prefixes the synthetic
// meeting/calendar links it mints.
type InMemoryProvider struct {
	baseURL string

	mu     sync.Mutex
	events map[string]ProviderEvent // keyed by dedupKey, CreateEvent's own idempotency guard
	busy   []domain.Slot
}

// NewInMemoryProvider builds an InMemoryProvider. baseURL prefixes every
// synthetic meeting/calendar URL it generates (e.g. "https://meet.example.com").
func NewInMemoryProvider(baseURL string) *InMemoryProvider {
	return &InMemoryProvider{baseURL: baseURL, events: map[string]ProviderEvent{}}
}

// BusyIntervals returns every booked window overlapping [from, to).
func (p *InMemoryProvider) BusyIntervals(_ context.Context, from, to time.Time) ([]domain.Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.Slot
	for _, b := range p.busy {
		if b.Start.Before(to) && from.Before(b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

// CreateEvent books start-end as busy and mints deterministic URLs keyed by
// dedupKey, so a retried commit with the same key returns the same links
// instead of minting a second event.
func (p *InMemoryProvider) CreateEvent(_ context.Context, dedupKey string, start, end time.Time, attendees []string) (ProviderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.events[dedupKey]; ok {
		return existing, nil
	}

	id := eventID(dedupKey)
	event := ProviderEvent{
		EventID:     id,
		MeetingURL:  p.baseURL + "/meet/" + id,
		CalendarURL: p.baseURL + "/calendar/" + id,
	}
	p.events[dedupKey] = event
	p.busy = append(p.busy, domain.Slot{Start: start, End: end})
	return event, nil
}

func eventID(dedupKey string) string {
	sum := sha256.Sum256([]byte(dedupKey))
	return hex.EncodeToString(sum[:8])
}
