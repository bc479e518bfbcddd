package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	t.Run("requires secret key", func(t *testing.T) {
		_, err := New(Config{})

		require.Error(t, err, "empty secret must be rejected")
	})

	t.Run("issue and parse round trip", func(t *testing.T) {
		manager, err := New(Config{SecretKey: "test-secret"})
		require.NoError(t, err)

		userID := uuid.New()
		token, err := manager.Issue(userID)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		parsed, err := manager.ParseUserID(token)

		require.NoError(t, err)
		require.Equal(t, userID, parsed)
	})

	t.Run("other key rejected", func(t *testing.T) {
		manager, err := New(Config{SecretKey: "test-secret"})
		require.NoError(t, err)
		other, err := New(Config{SecretKey: "other-secret"})
		require.NoError(t, err)

		token, err := other.Issue(uuid.New())
		require.NoError(t, err)

		_, err = manager.ParseUserID(token)

		require.Error(t, err, "token signed with a different key must not validate")
	})

	t.Run("expired token rejected", func(t *testing.T) {
		manager, err := New(Config{SecretKey: "test-secret", TokenTTL: -time.Minute})
		require.NoError(t, err)

		token, err := manager.Issue(uuid.New())
		require.NoError(t, err)

		_, err = manager.ParseUserID(token)

		require.Error(t, err, "expired token must not validate")
	})

	t.Run("garbage rejected", func(t *testing.T) {
		manager, err := New(Config{SecretKey: "test-secret"})
		require.NoError(t, err)

		_, err = manager.ParseUserID("not-a-jwt")

		require.Error(t, err)
	})
}
