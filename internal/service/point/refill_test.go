package point

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/repository"
	"github.com/samkok24/char-chat-project-sub001/internal/repository/postgres"
	"github.com/samkok24/char-chat-project-sub001/internal/testutil"
)

func TestGetTimerStatus(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Fresh service with a controllable clock per test
	withTx := func(t *testing.T, fn func(s *PointService, cache *fakeCache, storage repository.Storage, clock *time.Time)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			cache := newFakeCache()
			s := NewService(storage, cache, nil)

			clock := base
			s.now = func() time.Time { return clock }

			fn(s, cache, storage, &clock)
		})
	}

	t.Run("fresh user starts empty", func(t *testing.T) {
		withTx(t, func(s *PointService, _ *fakeCache, _ repository.Storage, _ *time.Time) {
			status, err := s.GetTimerStatus(t.Context(), uuid.New())

			require.NoError(t, err)
			require.Zero(t, status.Current)
			require.Zero(t, status.Earned)
			require.Equal(t, TimerMax, status.Max)
			require.Equal(t, int64(RefillInterval/time.Second), status.NextRefillSeconds, "full interval remains for a fresh bucket")
		})
	})

	t.Run("whole elapsed intervals are credited", func(t *testing.T) {
		withTx(t, func(s *PointService, cache *fakeCache, storage repository.Storage, clock *time.Time) {
			userID := uuid.New()
			_, err := s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			*clock = base.Add(5*RefillInterval + 30*time.Minute)
			status, err := s.GetTimerStatus(t.Context(), userID)

			require.NoError(t, err)
			require.Equal(t, 5, status.Earned)
			require.Equal(t, 5, status.Current)
			require.Equal(t, int64((RefillInterval-30*time.Minute)/time.Second), status.NextRefillSeconds,
				"partial progress toward the next interval should be kept")

			balance, err := storage.Ledger().GetBalance(t.Context(), userID, false)
			require.NoError(t, err)
			require.Equal(t, int64(5), balance.Amount, "credited intervals should land on the ledger")

			entries, err := storage.Ledger().ListEntries(t.Context(), userID, repository.ListEntriesOpts{Kinds: []string{models.EntryKindBonus}})
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, int64(5), entries[0].Amount)

			state, err := storage.Refill().GetOrCreate(t.Context(), userID, *clock)
			require.NoError(t, err)
			require.WithinDuration(t, base.Add(5*RefillInterval), state.LastRefillAt, time.Second,
				"anchor should advance by whole intervals, never to now")
		})
	})

	t.Run("credit is idempotent within an interval", func(t *testing.T) {
		withTx(t, func(s *PointService, _ *fakeCache, storage repository.Storage, clock *time.Time) {
			userID := uuid.New()
			_, err := s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			*clock = base.Add(2 * RefillInterval)
			_, err = s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			status, err := s.GetTimerStatus(t.Context(), userID)

			require.NoError(t, err)
			require.Zero(t, status.Earned, "second read in the same interval should credit nothing")
			require.Equal(t, 2, status.Current)

			balance, err := storage.Ledger().GetBalance(t.Context(), userID, false)
			require.NoError(t, err)
			require.Equal(t, int64(2), balance.Amount)
		})
	})

	t.Run("bucket caps at max", func(t *testing.T) {
		withTx(t, func(s *PointService, _ *fakeCache, _ repository.Storage, clock *time.Time) {
			userID := uuid.New()
			_, err := s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			*clock = base.Add(100 * RefillInterval)
			status, err := s.GetTimerStatus(t.Context(), userID)

			require.NoError(t, err)
			require.Equal(t, TimerMax, status.Current)
			require.Equal(t, TimerMax, status.Earned)
			require.Zero(t, status.NextRefillSeconds, "nothing refills at the cap")
		})
	})

	t.Run("lock contention serves persisted state", func(t *testing.T) {
		withTx(t, func(s *PointService, cache *fakeCache, storage repository.Storage, clock *time.Time) {
			userID := uuid.New()
			_, err := s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			cache.lockBusy = true
			*clock = base.Add(3 * RefillInterval)
			status, err := s.GetTimerStatus(t.Context(), userID)

			require.NoError(t, err, "losing the lock race is not an error")
			require.Zero(t, status.Earned)
			require.Zero(t, status.Current, "persisted state is served unchanged")

			_, err = storage.Ledger().GetBalance(t.Context(), userID, false)
			require.Error(t, err, "nothing should be credited without the lock")
		})
	})

	t.Run("concurrent reads credit once", func(t *testing.T) {
		// Runs against the pool, not a rolled back tx: concurrent readers
		// need their own connections
		storage := postgres.NewStorage(pg.Pool)
		cache := newFakeCache()
		s := NewService(storage, cache, nil)

		var mu sync.Mutex
		clock := base
		s.now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return clock
		}

		userID := uuid.New()
		_, err := s.GetTimerStatus(t.Context(), userID)
		require.NoError(t, err)

		mu.Lock()
		clock = base.Add(5 * RefillInterval)
		mu.Unlock()

		const readers = 8
		var wg sync.WaitGroup
		statuses := make(chan models.TimerStatus, readers)

		for i := 0; i < readers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, err := s.GetTimerStatus(t.Context(), userID)
				if err == nil {
					statuses <- status
				}
			}()
		}
		wg.Wait()
		close(statuses)

		// Lock losers may serve state read before the winner committed,
		// so Current is not asserted per reader
		var reads, earned int
		for status := range statuses {
			reads++
			earned += status.Earned
		}
		require.Equal(t, readers, reads, "no reader should fail on lock contention")
		require.Equal(t, 5, earned, "the elapsed intervals must be credited exactly once across readers")

		entries, err := storage.Ledger().ListEntries(t.Context(), userID, repository.ListEntriesOpts{Kinds: []string{models.EntryKindBonus}})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, int64(5), entries[0].Amount)
	})

	t.Run("cache invalidated after credit", func(t *testing.T) {
		withTx(t, func(s *PointService, cache *fakeCache, _ repository.Storage, clock *time.Time) {
			userID := uuid.New()
			cache.seed(userID, 50)

			_, err := s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			*clock = base.Add(RefillInterval)
			_, err = s.GetTimerStatus(t.Context(), userID)
			require.NoError(t, err)

			_, ok := cache.cached(userID)
			require.False(t, ok, "stale cached balance should be dropped after the credit")
		})
	})
}
