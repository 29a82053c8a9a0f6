package handover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/masking"
	"github.com/omnichat/relay/pkg/nlu"
	"github.com/omnichat/relay/pkg/presence"
	"github.com/omnichat/relay/pkg/store"
)

// newTestService spins up a throwaway Postgres container, the same path
// pkg/store's own tests use, and builds a Service with no Slack notifier
// (urgent tickets still queue, they just aren't paged in this test).
func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("relay_test"),
		postgres.WithUsername("relay"),
		postgres.WithPassword("relay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := store.NewClient(ctx, store.Config{
		Host: host, Port: port.Int(), User: "relay", Password: "relay", Database: "relay_test",
		SSLMode: "disable", MaxOpenConns: 5, MaxIdleConns: 2,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	db := client.DB()
	repo := store.NewHandoverRepo(db)
	pub := presence.NewPublisher(db)
	return NewService(repo, masking.NewService(), pub, nil)
}

func TestService_CreateIsIdempotentPerOpenConversation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "conv-1", []domain.HandoverReason{domain.ReasonComplaint}, nil, nlu.Entities{}, "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.HandoverPending, first.Status)

	second, err := svc.Create(ctx, "conv-1", []domain.HandoverReason{domain.ReasonLowConfidence}, nil, nlu.Entities{}, "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "a second trigger on an already-open conversation returns the existing ticket")
}

func TestService_CreateMasksCustomerContactDetails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "conv-2", []domain.HandoverReason{domain.ReasonExplicitRequest}, nil, nlu.Entities{}, "",
		"jane@example.com", "+15551234567", "Jane")
	require.NoError(t, err)

	assert.NotEqual(t, "jane@example.com", ticket.Context.CustomerEmail)
	assert.NotEqual(t, "+15551234567", ticket.Context.CustomerPhone)
	assert.Equal(t, "Jane", ticket.Context.CustomerName)
}

func TestService_AcceptIsCompareAndSwap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "conv-3", []domain.HandoverReason{domain.ReasonComplexQuery}, nil, nlu.Entities{}, "", "", "", "")
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, ticket.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", accepted.AssignedAgent)

	_, err = svc.Accept(ctx, ticket.ID, "agent-2")
	assert.True(t, apperrors.Is(err, apperrors.Conflict), "a second accept on an already-claimed ticket is a conflict")
}

func TestService_HasOpenTicketReflectsLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	open, err := svc.HasOpenTicket(ctx, "conv-4")
	require.NoError(t, err)
	assert.False(t, open)

	ticket, err := svc.Create(ctx, "conv-4", []domain.HandoverReason{domain.ReasonEscalation}, nil, nlu.Entities{}, "", "", "", "")
	require.NoError(t, err)

	open, err = svc.HasOpenTicket(ctx, "conv-4")
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, svc.Resolve(ctx, ticket.ID, "handled"))

	open, err = svc.HasOpenTicket(ctx, "conv-4")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestService_QueueOrdersByPriorityThenAge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "conv-low", []domain.HandoverReason{domain.ReasonOutOfHours}, nil, nlu.Entities{}, "", "", "", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "conv-urgent", []domain.HandoverReason{domain.ReasonComplaint}, nil, nlu.Entities{}, "", "", "", "")
	require.NoError(t, err)

	queue, err := svc.Queue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "conv-urgent", queue[0].ConversationID, "the higher-priority reason sorts first")
}
