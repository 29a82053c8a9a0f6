package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

func TestHandoverRepo_AcceptIsCompareAndSwap(t *testing.T) {
	client := newTestClient(t)
	repo := NewHandoverRepo(client.DB())
	ctx := context.Background()

	ticket := domain.HandoverTicket{
		ID: uuid.New().String(), ConversationID: "u1:u2", Reason: domain.ReasonComplaint,
		Priority: 4, Status: domain.HandoverPending, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, ticket))

	const racers = 5
	var wins, conflicts int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(agent string) {
			defer wg.Done()
			_, err := repo.Accept(ctx, ticket.ID, agent, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				require.True(t, apperrors.Is(err, apperrors.Conflict))
				conflicts++
			}
		}("agent-" + uuid.New().String())
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one accept call must succeed")
	assert.Equal(t, racers-1, conflicts)
}

func TestHandoverRepo_OpenForConversationExcludesResolved(t *testing.T) {
	client := newTestClient(t)
	repo := NewHandoverRepo(client.DB())
	ctx := context.Background()

	ticket := domain.HandoverTicket{
		ID: uuid.New().String(), ConversationID: "u3:u4", Reason: domain.ReasonLowConfidence,
		Priority: 2, Status: domain.HandoverPending, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, ticket))

	open, err := repo.OpenForConversation(ctx, ticket.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, open.ID)

	require.NoError(t, repo.Resolve(ctx, ticket.ID, "handled", time.Now()))

	_, err = repo.OpenForConversation(ctx, ticket.ConversationID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}
