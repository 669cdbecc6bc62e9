package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tallysync/internal/client/storage"
)

func testAuthData() *storage.AuthData {
	return &storage.AuthData{
		Email:        "user@example.com",
		AccountID:    "account-1",
		AccountClass: "team",
		Token:        "jwt-token",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
}

func TestSaveAndGetAuth(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	auth := testAuthData()
	require.NoError(t, s.SaveAuth(ctx, auth))

	got, err := s.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, got)
}

func TestGetAuth_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetAuth(context.Background())
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestSaveAuth_Overwrites(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAuth(ctx, testAuthData()))

	updated := testAuthData()
	updated.Token = "new-token"
	require.NoError(t, s.SaveAuth(ctx, updated))

	got, err := s.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-token", got.Token)
}

func TestDeleteAuth(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAuth(ctx, testAuthData()))
	require.NoError(t, s.DeleteAuth(ctx))

	_, err := s.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestDeleteAuth_NotFound(t *testing.T) {
	s := newTestStorage(t)

	err := s.DeleteAuth(context.Background())
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
}

func TestIsAuthenticated(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// Нет данных
	ok, err := s.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Валидный токен
	require.NoError(t, s.SaveAuth(ctx, testAuthData()))
	ok, err = s.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Истекший токен
	expired := testAuthData()
	expired.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	require.NoError(t, s.SaveAuth(ctx, expired))
	ok, err = s.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
