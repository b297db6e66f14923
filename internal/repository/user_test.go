//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/testutil"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(ctx, t, "../../migrations")
	repo := NewUserRepository(pool)

	user := domain.NewUser(uuid.NewString(), "alice", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, user))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Name, got.Name)
		assert.True(t, user.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("get by name", func(t *testing.T) {
		got, err := repo.GetByName(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.Create(ctx, domain.NewUser(uuid.NewString(), "alice", time.Now().UTC()))
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})

	t.Run("missing and malformed ids", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		_, err = repo.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, domain.NewUser(uuid.NewString(), "bob", time.Now().UTC())))
		users, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	pool := testutil.StartPostgres(ctx, t, "../../migrations")
	repo := NewAPIKeyRepository(pool)
	userID := testutil.InsertUser(ctx, t, pool, "key-owner")

	key := domain.NewAPIKey(uuid.NewString(), userID, "laptop", "hash-1", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, key))

	t.Run("get by hash", func(t *testing.T) {
		got, err := repo.GetByHash(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Equal(t, userID, got.UserID)
		assert.False(t, got.IsRevoked())
	})

	t.Run("duplicate hash", func(t *testing.T) {
		err := repo.Create(ctx, domain.NewAPIKey(uuid.NewString(), userID, "other", "hash-1", time.Now().UTC()))
		assert.ErrorIs(t, err, domain.ErrAPIKeyAlreadyExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := repo.Create(ctx, domain.NewAPIKey(uuid.NewString(), uuid.NewString(), "ghost", "hash-2", time.Now().UTC()))
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("list by user", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, domain.NewAPIKey(uuid.NewString(), userID, "desktop", "hash-3", time.Now().UTC())))
		keys, err := repo.GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("revoke", func(t *testing.T) {
		require.NoError(t, repo.Revoke(ctx, key.ID))

		got, err := repo.GetByID(ctx, key.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRevoked())

		assert.ErrorIs(t, repo.Revoke(ctx, key.ID), domain.ErrAPIKeyNotFound)
	})

	t.Run("cascade on user delete", func(t *testing.T) {
		_, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		require.NoError(t, err)

		_, err = repo.GetByHash(ctx, "hash-3")
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
	})
}
