package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

func TestCalendarRepo_CreateRejectsDuplicateDedupKey(t *testing.T) {
	client := newTestClient(t)
	repo := NewCalendarRepo(client.DB())
	ctx := context.Background()

	start := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	dedupKey := domain.DedupKey("c1", start, "customer@example.com")

	commitment := domain.CalendarCommitment{
		ID: uuid.New().String(), ProviderEventID: "evt-1", ConversationID: "c1",
		AgentKey: "sdr", CustomerEmail: "customer@example.com", Start: start, End: start.Add(time.Hour),
		Status: domain.CommitmentConfirmed, DedupKey: dedupKey,
	}
	require.NoError(t, repo.Create(ctx, commitment))

	retry := commitment
	retry.ID = uuid.New().String()
	retry.ProviderEventID = "evt-2" // simulates a retry that would otherwise double-book
	err := repo.Create(ctx, retry)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Conflict))

	existing, err := repo.ByDedupKey(ctx, dedupKey)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", existing.ProviderEventID, "the crash-recovery lookup must surface the original event, not the retry")
}
