package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/domain"
)

func TestMessageRepo_AppendIsIdempotentOnClientTempID(t *testing.T) {
	client := newTestClient(t)
	repo := NewMessageRepo(client.DB())
	ctx := context.Background()

	m := domain.Message{
		ID: uuid.New().String(), Author: "u1", ConversationID: "u1:u2",
		Timestamp: time.Now(), Kind: domain.KindText, Text: "hi",
		Status: domain.StatusPending, ClientTempID: "temp-1",
	}

	first, err := repo.Append(ctx, m)
	require.NoError(t, err)

	retry := m
	retry.ID = uuid.New().String() // simulates a client resending after a timeout
	retry.Text = "hi"
	second, err := repo.Append(ctx, retry)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "resend with the same tempId must not create a second message")
}

func TestMessageRepo_UpdateStatusIsMonotone(t *testing.T) {
	client := newTestClient(t)
	repo := NewMessageRepo(client.DB())
	ctx := context.Background()

	m := domain.Message{
		ID: uuid.New().String(), Author: "u1", ConversationID: "u1:u2",
		Timestamp: time.Now(), Kind: domain.KindText, Text: "hi", Status: domain.StatusPending,
	}
	stored, err := repo.Append(ctx, m)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, stored.ID, domain.StatusDelivered))
	require.NoError(t, repo.UpdateStatus(ctx, stored.ID, domain.StatusSent)) // attempted regression, must no-op

	history, err := repo.History(ctx, "u1:u2", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusDelivered, history[0].Status, "status must never regress (I3)")

	events, err := repo.EventsSince(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1, "the no-op regression attempt must not append a second delivery event")
	assert.Equal(t, domain.StatusDelivered, events[0].Status)
}

func TestMessageRepo_HistoryOrdersAscendingByTimestamp(t *testing.T) {
	client := newTestClient(t)
	repo := NewMessageRepo(client.DB())
	ctx := context.Background()

	base := time.Now()
	for i, text := range []string{"first", "second", "third"} {
		_, err := repo.Append(ctx, domain.Message{
			ID: uuid.New().String(), Author: "u1", ConversationID: "u1:u3",
			Timestamp: base.Add(time.Duration(i) * time.Second), Kind: domain.KindText,
			Text: text, Status: domain.StatusPending,
		})
		require.NoError(t, err)
	}

	history, err := repo.History(ctx, "u1:u3", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{history[0].Text, history[1].Text, history[2].Text})
}

func TestMessageRepo_RecentPerPeerReportsLastMessageAndUnreadCount(t *testing.T) {
	client := newTestClient(t)
	repo := NewMessageRepo(client.DB())
	ctx := context.Background()

	base := time.Now()
	conv := domain.ConversationID("u1", "u2")
	_, err := repo.Append(ctx, domain.Message{
		ID: uuid.New().String(), Author: "u2", ConversationID: conv,
		Timestamp: base, Kind: domain.KindText, Text: "hey", Status: domain.StatusDelivered,
	})
	require.NoError(t, err)
	_, err = repo.Append(ctx, domain.Message{
		ID: uuid.New().String(), Author: "u2", ConversationID: conv,
		Timestamp: base.Add(time.Second), Kind: domain.KindText, Text: "you there?", Status: domain.StatusDelivered,
	})
	require.NoError(t, err)
	_, err = repo.Append(ctx, domain.Message{
		ID: uuid.New().String(), Author: "u1", ConversationID: conv,
		Timestamp: base.Add(2 * time.Second), Kind: domain.KindText, Text: "yep", Status: domain.StatusRead,
	})
	require.NoError(t, err)

	peers, err := repo.RecentPerPeer(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "u2", peers[0].PeerID)
	assert.Equal(t, "yep", peers[0].LastMessage.Text)
	assert.Equal(t, 2, peers[0].UnreadCount, "both of u2's messages are still unread from u1's perspective")
}

func TestMessageRepo_MarkConversationReadAdvancesPeerMessagesAndIsIdempotent(t *testing.T) {
	client := newTestClient(t)
	repo := NewMessageRepo(client.DB())
	ctx := context.Background()

	base := time.Now()
	conv := domain.ConversationID("u1", "u2")
	_, err := repo.Append(ctx, domain.Message{
		ID: uuid.New().String(), Author: "u2", ConversationID: conv,
		Timestamp: base, Kind: domain.KindText, Text: "hey", Status: domain.StatusDelivered,
	})
	require.NoError(t, err)
	_, err = repo.Append(ctx, domain.Message{
		ID: uuid.New().String(), Author: "u2", ConversationID: conv,
		Timestamp: base.Add(time.Second), Kind: domain.KindText, Text: "you there?", Status: domain.StatusDelivered,
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkConversationRead(ctx, conv, "u2", base.Add(10*time.Second)))

	history, err := repo.History(ctx, conv, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusRead, history[0].Status)
	assert.Equal(t, domain.StatusRead, history[1].Status)

	events, err := repo.EventsSince(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2, "one delivery event per advanced message")

	// Idempotent: calling again with the same cutoff advances nothing further.
	require.NoError(t, repo.MarkConversationRead(ctx, conv, "u2", base.Add(10*time.Second)))
	eventsAfterRepeat, err := repo.EventsSince(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, eventsAfterRepeat, 2, "repeat mark-read must not emit duplicate delivery events")
}
