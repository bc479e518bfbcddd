package point

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/rubycache"
)

// In-memory cache with the same atomicity as the Redis script: the
// check-and-decrement runs under one mutex, so concurrent spends are
// serialized exactly like EVAL serializes them.
type fakeCache struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	recent   map[uuid.UUID][]rubycache.SpendRecord
	claims   map[string]bool
	locks    map[uuid.UUID]bool

	// Flip to simulate Redis being down or the lock being held elsewhere
	unavailable bool
	lockBusy    bool

	// Runs once right before the next Seed takes the mutex, letting a
	// test interleave work between a ledger read and its seed attempt
	beforeSeed func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		balances: map[uuid.UUID]int64{},
		recent:   map[uuid.UUID][]rubycache.SpendRecord{},
		claims:   map[string]bool{},
		locks:    map[uuid.UUID]bool{},
	}
}

func (f *fakeCache) Spend(_ context.Context, userID uuid.UUID, amount int64, record rubycache.SpendRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return 0, apperrors.ErrCacheUnavailable
	}

	balance, ok := f.balances[userID]
	if !ok {
		return 0, apperrors.ErrCacheMiss
	}
	if balance < amount {
		return balance, apperrors.ErrBalanceInsufficient
	}

	f.balances[userID] = balance - amount
	f.recent[userID] = append([]rubycache.SpendRecord{record}, f.recent[userID]...)
	return balance - amount, nil
}

func (f *fakeCache) Seed(_ context.Context, userID uuid.UUID, amount int64, _ time.Duration) (bool, error) {
	if f.beforeSeed != nil {
		hook := f.beforeSeed
		f.beforeSeed = nil
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return false, apperrors.ErrCacheUnavailable
	}

	if _, ok := f.balances[userID]; ok {
		return false, nil
	}

	f.balances[userID] = amount
	return true, nil
}

func (f *fakeCache) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return 0, apperrors.ErrCacheUnavailable
	}

	balance, ok := f.balances[userID]
	if !ok {
		return 0, apperrors.ErrCacheMiss
	}
	return balance, nil
}

func (f *fakeCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return apperrors.ErrCacheUnavailable
	}

	delete(f.balances, userID)
	return nil
}

func (f *fakeCache) RecentSpends(_ context.Context, userID uuid.UUID) ([]rubycache.SpendRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent[userID], nil
}

func (f *fakeCache) TryRefillLock(_ context.Context, userID uuid.UUID, _ time.Duration) (func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lockBusy || f.locks[userID] {
		return nil, apperrors.ErrLockNotAcquired
	}

	f.locks[userID] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.locks, userID)
		return nil
	}, nil
}

func (f *fakeCache) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return false, apperrors.ErrCacheUnavailable
	}

	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *fakeCache) ReleaseClaim(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.claims, key)
	return nil
}

// seed puts a balance into the cache directly, bypassing the if-absent
// check, so tests can stage any cache state they need
func (f *fakeCache) seed(userID uuid.UUID, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.balances[userID] = amount
}

func (f *fakeCache) cached(userID uuid.UUID) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	balance, ok := f.balances[userID]
	return balance, ok
}
