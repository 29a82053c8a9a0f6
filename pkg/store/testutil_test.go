package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient starts a throwaway Postgres container, applies the
// embedded migrations through the real NewClient path, and tears the
// container down at test end.
func newTestClient(t *testing.T) *Client {
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

	client, err := NewClient(ctx, Config{
		Host: host, Port: port.Int(), User: "relay", Password: "relay", Database: "relay_test",
		SSLMode: "disable", MaxOpenConns: 5, MaxIdleConns: 2,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}
