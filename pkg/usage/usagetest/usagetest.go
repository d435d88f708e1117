// Package usagetest holds the behavioural test suite every usage.Store
// implementation must pass.
package usagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed UTC instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds a fresh, empty store bound to the given clock and TTL.
type Factory func(t *testing.T, clock *Clock, ttl time.Duration) usage.Store

// Catalog returns the default plan catalog.
func Catalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.NewCatalog(context.Background(), plans.DefaultSource())
	require.NoError(t, err)
	return c
}

var userSeq atomic.Int64

// nextUser keeps ids unique when a backend shares state across subtests.
func nextUser() int64 {
	return 1_000_000 + userSeq.Add(1)
}

// Run executes the suite. Subtests are sequential because they drive a shared clock.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	setup := func(t *testing.T, tier plans.Tier) (usage.Store, *Clock, int64) {
		t.Helper()
		clock := NewClock()
		store := newStore(t, clock, usage.DefaultReservationTTL)
		uid := nextUser()
		_, err := store.GetOrCreate(ctx, uid, usage.Identity{Username: "user"})
		require.NoError(t, err)
		if tier != plans.TierFree {
			require.NoError(t, store.SetPlan(ctx, uid, tier))
		}
		return store, clock, uid
	}

	consume := func(t *testing.T, store usage.Store, uid int64, d plans.Dimension, n int) {
		t.Helper()
		for range n {
			r, err := store.CheckAndReserve(ctx, uid, d, 1)
			require.NoError(t, err)
			require.NoError(t, store.Commit(ctx, r))
		}
	}

	t.Run("get or create returns a free account", func(t *testing.T) {
		clock := NewClock()
		store := newStore(t, clock, usage.DefaultReservationTTL)
		uid := nextUser()

		acc, err := store.GetOrCreate(ctx, uid, usage.Identity{Username: "alice", FirstName: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, uid, acc.UserID)
		assert.Equal(t, plans.TierFree, acc.Plan)
		assert.Equal(t, "alice", acc.Username)
		for _, d := range plans.Dimensions {
			assert.Zero(t, acc.Count(d))
		}
		assert.WithinDuration(t, clock.Now(), acc.LastDailyReset, time.Millisecond)
		assert.WithinDuration(t, clock.Now(), acc.LastMonthlyReset, time.Millisecond)

		again, err := store.GetOrCreate(ctx, uid, usage.Identity{Username: "changed"})
		require.NoError(t, err)
		assert.Equal(t, "alice", again.Username)
	})

	t.Run("concurrent get or create observes one account", func(t *testing.T) {
		store := newStore(t, NewClock(), usage.DefaultReservationTTL)
		uid := nextUser()

		const workers = 20
		var wg sync.WaitGroup
		created := make([]time.Time, workers)
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				acc, err := store.GetOrCreate(ctx, uid, usage.Identity{})
				errs[i] = err
				if acc != nil {
					created[i] = acc.CreatedAt
				}
			}(i)
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			assert.True(t, created[0].Equal(created[i]))
		}
	})

	t.Run("reserve then commit increments by the amount", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierAlpha)

		r, err := store.CheckAndReserve(ctx, uid, plans.MonthlyDeepTokens, 1500)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), r.Amount)

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Zero(t, acc.Count(plans.MonthlyDeepTokens))

		require.NoError(t, store.Commit(ctx, r))

		acc, err = store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), acc.Count(plans.MonthlyDeepTokens))
	})

	t.Run("second commit fails and changes nothing", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)

		r, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, r))

		err = store.Commit(ctx, r)
		assert.ErrorIs(t, err, usage.ErrReservationNotFound)

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(1), acc.Count(plans.MonthlyImages))
	})

	t.Run("released reservation returns quota", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.MonthlyImages, 4)

		r, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.NoError(t, err)

		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		assert.ErrorIs(t, err, usage.ErrQuotaExceeded)

		require.NoError(t, store.Release(ctx, r))
		require.NoError(t, store.Release(ctx, r))

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(4), acc.Count(plans.MonthlyImages))

		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		assert.NoError(t, err)
	})

	t.Run("free user at image limit is refused", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.MonthlyImages, 5)

		_, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.ErrorIs(t, err, usage.ErrQuotaExceeded)

		qe, ok := usage.IsQuotaError(err)
		require.True(t, ok)
		assert.Equal(t, plans.MonthlyImages, qe.Dimension)
		assert.Equal(t, int64(5), qe.Limit)
	})

	t.Run("zero limit is feature not on plan", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierPro)

		_, err := store.CheckAndReserve(ctx, uid, plans.MonthlyVideos, 1)
		assert.ErrorIs(t, err, usage.ErrFeatureNotOnPlan)
		assert.NotErrorIs(t, err, usage.ErrQuotaExceeded)

		_, err = store.CheckAndReserve(ctx, uid, plans.DailyTextB, 1)
		assert.ErrorIs(t, err, usage.ErrFeatureNotOnPlan)
	})

	t.Run("unlimited dimension skips the check", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierAlpha)
		consume(t, store, uid, plans.MonthlyImages, 25)

		_, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1_000_000)
		assert.NoError(t, err)
	})

	t.Run("daily reset before check", func(t *testing.T) {
		store, clock, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.DailyTextA, 10)

		_, err := store.CheckAndReserve(ctx, uid, plans.DailyTextA, 1)
		require.ErrorIs(t, err, usage.ErrQuotaExceeded)

		clock.Advance(25 * time.Hour)

		r, err := store.CheckAndReserve(ctx, uid, plans.DailyTextA, 1)
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, r))

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(1), acc.Count(plans.DailyTextA))
	})

	t.Run("one reset per window", func(t *testing.T) {
		store, clock, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.DailyTextA, 3)

		clock.Advance(24 * time.Hour)
		consume(t, store, uid, plans.DailyTextA, 2)
		clock.Advance(time.Hour)
		consume(t, store, uid, plans.DailyTextA, 2)

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(4), acc.Count(plans.DailyTextA))
	})

	t.Run("monthly window is thirty days", func(t *testing.T) {
		store, clock, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.MonthlyImages, 5)

		clock.Advance(29 * 24 * time.Hour)
		_, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.ErrorIs(t, err, usage.ErrQuotaExceeded)

		clock.Advance(24 * time.Hour)
		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.NoError(t, err)
	})

	t.Run("daily reset keeps monthly counters", func(t *testing.T) {
		store, clock, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.MonthlyImages, 2)
		consume(t, store, uid, plans.DailyTextA, 2)

		clock.Advance(36 * time.Hour)

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Zero(t, acc.Count(plans.DailyTextA))
		assert.Equal(t, int64(2), acc.Count(plans.MonthlyImages))
	})

	t.Run("concurrent requests for the last unit", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.MonthlyImages, 4)

		const workers = 16
		var (
			wg       sync.WaitGroup
			success  atomic.Int32
			exceeded atomic.Int32
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
				if err != nil {
					if assert.ErrorIs(t, err, usage.ErrQuotaExceeded) {
						exceeded.Add(1)
					}
					return
				}
				if assert.NoError(t, store.Commit(ctx, r)) {
					success.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), success.Load())
		assert.Equal(t, int32(workers-1), exceeded.Load())

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(5), acc.Count(plans.MonthlyImages))
	})

	t.Run("accounts are independent", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)
		other := nextUser()
		_, err := store.GetOrCreate(ctx, other, usage.Identity{})
		require.NoError(t, err)

		consume(t, store, uid, plans.MonthlyImages, 5)

		_, err = store.CheckAndReserve(ctx, other, plans.MonthlyImages, 1)
		assert.NoError(t, err)
	})

	t.Run("set plan keeps counters", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)
		consume(t, store, uid, plans.MonthlyImages, 5)

		require.NoError(t, store.SetPlan(ctx, uid, plans.TierMini))

		acc, err := store.Snapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, plans.TierMini, acc.Plan)
		assert.Equal(t, int64(5), acc.Count(plans.MonthlyImages))

		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		assert.NoError(t, err)
	})

	t.Run("unknown account", func(t *testing.T) {
		store := newStore(t, NewClock(), usage.DefaultReservationTTL)
		uid := nextUser()

		_, err := store.Snapshot(ctx, uid)
		assert.ErrorIs(t, err, usage.ErrAccountNotFound)

		err = store.SetPlan(ctx, uid, plans.TierAlpha)
		assert.ErrorIs(t, err, usage.ErrAccountNotFound)

		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		assert.ErrorIs(t, err, usage.ErrAccountNotFound)
	})

	t.Run("invalid request", func(t *testing.T) {
		store, _, uid := setup(t, plans.TierFree)

		_, err := store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 0)
		assert.ErrorIs(t, err, usage.ErrInvalidAmount)

		_, err = store.CheckAndReserve(ctx, uid, plans.Dimension("weekly"), 1)
		assert.ErrorIs(t, err, usage.ErrInvalidDimension)
	})

	t.Run("expired reservation stops holding quota", func(t *testing.T) {
		clock := NewClock()
		store := newStore(t, clock, time.Minute)
		uid := nextUser()
		_, err := store.GetOrCreate(ctx, uid, usage.Identity{})
		require.NoError(t, err)
		consume(t, store, uid, plans.MonthlyImages, 4)

		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.NoError(t, err)
		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		require.ErrorIs(t, err, usage.ErrQuotaExceeded)

		clock.Advance(2 * time.Minute)

		purged, err := store.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, purged, 1)

		_, err = store.CheckAndReserve(ctx, uid, plans.MonthlyImages, 1)
		assert.NoError(t, err)
	})
}
