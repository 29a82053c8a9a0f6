package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/apperrors"
)

func TestUploadRepo_ConfirmIsCompareAndSwap(t *testing.T) {
	client := newTestClient(t)
	repo := NewUploadRepo(client.DB())
	ctx := context.Background()
	now := time.Now()

	grant := PendingUpload{
		ObjectKey: "messages/2026/07/30/abc.png", MimeType: "image/png", MaxSizeBytes: 1 << 20,
		IssuerUserID: "u1", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}
	require.NoError(t, repo.Grant(ctx, grant))

	require.NoError(t, repo.Confirm(ctx, grant.ObjectKey, now.Add(time.Second)))

	err := repo.Confirm(ctx, grant.ObjectKey, now.Add(2*time.Second))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Conflict), "a second confirm of the same key must return Conflict")
}

func TestUploadRepo_ConfirmAfterExpiryFails(t *testing.T) {
	client := newTestClient(t)
	repo := NewUploadRepo(client.DB())
	ctx := context.Background()
	now := time.Now()

	grant := PendingUpload{
		ObjectKey: "messages/2026/07/30/expired.png", MimeType: "image/png", MaxSizeBytes: 1 << 20,
		IssuerUserID: "u1", IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, repo.Grant(ctx, grant))

	err := repo.Confirm(ctx, grant.ObjectKey, now)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Conflict))
}
