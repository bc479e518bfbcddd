package rubycache

import (
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
)

func TestCache_Claim(t *testing.T) {
	const key = "webhook:evt_123:paid"

	t.Run("first claim owns processing", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectSetNX(key, "1", 24*time.Hour).SetVal(true)

		owned, err := cache.Claim(t.Context(), key, 24*time.Hour)

		require.NoError(t, err)
		require.True(t, owned)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redelivery does not own", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectSetNX(key, "1", 24*time.Hour).SetVal(false)

		owned, err := cache.Claim(t.Context(), key, 24*time.Hour)

		require.NoError(t, err)
		require.False(t, owned)
	})

	t.Run("release allows retry", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectDel(key).SetVal(1)

		err := cache.ReleaseClaim(t.Context(), key)

		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
