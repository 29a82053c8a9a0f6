package agents

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
	"github.com/omnichat/relay/pkg/store"
)

// newTestAgentRepo starts a throwaway Postgres container through the same
// path pkg/store's own tests use, so Registry's merge of built-in and
// custom agents is exercised against a real store.AgentRepo.
func newTestAgentRepo(t *testing.T) *store.AgentRepo {
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

	return store.NewAgentRepo(client.DB())
}

func TestRegistry_GetPrefersBuiltInOverCustom(t *testing.T) {
	repo := newTestAgentRepo(t)
	reg := NewRegistry(repo)
	require.NoError(t, repo.Upsert(context.Background(), "acme", domain.AgentDefinition{
		Key: "concierge", DisplayName: "Shadow Concierge", Category: domain.CategoryCustom,
	}))

	a, err := reg.Get(context.Background(), "concierge")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryBuiltIn, a.Category)
}

func TestRegistry_GetFallsThroughToCustomStore(t *testing.T) {
	repo := newTestAgentRepo(t)
	reg := NewRegistry(repo)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "acme", domain.AgentDefinition{
		Key: "onboarding-bot", DisplayName: "Onboarding", Category: domain.CategoryCustom,
	}))

	a, err := reg.Get(ctx, "onboarding-bot")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryCustom, a.Category)

	_, err = reg.Get(ctx, "no-such-agent")
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestRegistry_ListMergesBuiltInAndCustomForTenant(t *testing.T) {
	repo := newTestAgentRepo(t)
	reg := NewRegistry(repo)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "acme", domain.AgentDefinition{
		Key: "acme-bot", DisplayName: "Acme Bot", Category: domain.CategoryCustom,
	}))

	list, err := reg.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, len(builtinAgents())+1)

	otherTenant, err := reg.List(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, otherTenant, len(builtinAgents()))
}
