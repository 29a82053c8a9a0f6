package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

type fakeUserStore struct {
	byEmail map[string]domain.User
	byID    map[string]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]domain.User{}, byID: map[string]domain.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u domain.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return apperrors.Conflict
	}
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserStore) ByEmail(_ context.Context, email string) (domain.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, apperrors.NotFound
	}
	return u, nil
}

func (f *fakeUserStore) ByID(_ context.Context, id string) (domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, apperrors.NotFound
	}
	return u, nil
}

func newTestService(t *testing.T) (*Service, *fakeUserStore) {
	t.Helper()
	tokens, err := NewTokenIssuer(testSecret(), time.Hour)
	require.NoError(t, err)
	store := newFakeUserStore()
	return NewService(store, tokens), store
}

func TestService_RegisterThenLoginSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter2hunter")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.User.ID)

	login, err := svc.Login(ctx, "ada@example.com", "hunter2hunter")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
}

func TestService_RegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter2hunter")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Ada Two", "ada@example.com", "somethingelse")
	assert.ErrorIs(t, err, apperrors.Conflict)
}

func TestService_LoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter2hunter")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.AuthInvalid)
}

func TestService_LoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, apperrors.AuthInvalid)
}
