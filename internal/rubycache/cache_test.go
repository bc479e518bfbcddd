package rubycache

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
)

func TestCache_Spend(t *testing.T) {
	userID := uuid.New()
	record := SpendRecord{
		TxID:   uuid.New(),
		Amount: 30,
		Reason: "chat turn",
		At:     time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(record)
	require.NoError(t, err)

	keys := []string{
		fmt.Sprintf("ruby:balance:%s", userID),
		fmt.Sprintf("ruby:recent:%s", userID),
	}

	t.Run("ok decrements and returns new balance", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectEvalSha(spendScript.Hash(), keys, int64(30), payload, recentRingSize).
			SetVal([]interface{}{int64(0), int64(70)})

		balance, err := cache.Spend(t.Context(), userID, 30, record)

		require.NoError(t, err)
		require.Equal(t, int64(70), balance)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient returns current balance and sentinel", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectEvalSha(spendScript.Hash(), keys, int64(30), payload, recentRingSize).
			SetVal([]interface{}{int64(-1), int64(10)})

		balance, err := cache.Spend(t.Context(), userID, 30, record)

		require.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)
		require.Equal(t, int64(10), balance, "caller needs the current balance to prompt a top-up")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss when balance not cached", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectEvalSha(spendScript.Hash(), keys, int64(30), payload, recentRingSize).
			SetVal([]interface{}{int64(-2), int64(0)})

		_, err := cache.Spend(t.Context(), userID, 30, record)

		require.ErrorIs(t, err, apperrors.ErrCacheMiss)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure maps to cache unavailable", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectEvalSha(spendScript.Hash(), keys, int64(30), payload, recentRingSize).
			SetErr(fmt.Errorf("connection refused"))

		_, err := cache.Spend(t.Context(), userID, 30, record)

		require.ErrorIs(t, err, apperrors.ErrCacheUnavailable)
	})
}

func TestCache_SeedAndBalance(t *testing.T) {
	userID := uuid.New()
	key := fmt.Sprintf("ruby:balance:%s", userID)

	t.Run("seed sets value with ttl when absent", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectSetNX(key, int64(100), 10*time.Minute).SetVal(true)

		seeded, err := cache.Seed(t.Context(), userID, 100, 10*time.Minute)

		require.NoError(t, err)
		require.True(t, seeded)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seed leaves an existing value untouched", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectSetNX(key, int64(100), 10*time.Minute).SetVal(false)

		seeded, err := cache.Seed(t.Context(), userID, 100, 10*time.Minute)

		require.NoError(t, err)
		require.False(t, seeded)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("balance reads cached value", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectGet(key).SetVal("70")

		balance, err := cache.Balance(t.Context(), userID)

		require.NoError(t, err)
		require.Equal(t, int64(70), balance)
	})

	t.Run("balance miss", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectGet(key).RedisNil()

		_, err := cache.Balance(t.Context(), userID)

		require.ErrorIs(t, err, apperrors.ErrCacheMiss)
	})

	t.Run("invalidate deletes key", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		cache := NewWithClient(rdb)

		mock.ExpectDel(key).SetVal(1)

		err := cache.Invalidate(t.Context(), userID)

		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCache_RecentSpends(t *testing.T) {
	userID := uuid.New()
	key := fmt.Sprintf("ruby:recent:%s", userID)

	record := SpendRecord{TxID: uuid.New(), Amount: 5, Reason: "chat turn", At: time.Now().UTC().Truncate(time.Second)}
	payload, err := json.Marshal(record)
	require.NoError(t, err)

	rdb, mock := redismock.NewClientMock()
	cache := NewWithClient(rdb)

	mock.ExpectLRange(key, 0, recentRingSize-1).SetVal([]string{string(payload), "not json"})

	records, err := cache.RecentSpends(t.Context(), userID)

	require.NoError(t, err)
	require.Len(t, records, 1, "malformed ring items should be skipped")
	require.Equal(t, record.TxID, records[0].TxID)
	require.Equal(t, record.Amount, records[0].Amount)
}
