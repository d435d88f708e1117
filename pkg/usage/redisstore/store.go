// Package redisstore implements usage.Store on Redis.
//
// Each account is one JSON document under "<prefix>account:<id>", pending
// reservations included. Mutations run in WATCH/MULTI optimistic transactions
// on that key, so only requests for the same account contend.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

type Store struct {
	client     redis.UniversalClient
	limits     usage.Limits
	opts       usage.Options
	prefix     string
	maxRetries int
}

var _ usage.Store = (*Store)(nil)

// New returns a Redis-backed store. The client is owned by the caller.
func New(client redis.UniversalClient, limits usage.Limits, cfg Config, opts ...usage.Option) *Store {
	return &Store{
		client:     client,
		limits:     limits,
		opts:       usage.NewOptions(opts...),
		prefix:     cfg.KeyPrefix,
		maxRetries: max(cfg.MaxTxRetries, 1),
	}
}

func (s *Store) accountKey(userID int64) string {
	return s.prefix + "account:" + strconv.FormatInt(userID, 10)
}

func (s *Store) indexKey() string {
	return s.prefix + "accounts"
}

// GetOrCreate inserts a FREE account with SETNX and returns whatever is stored.
func (s *Store) GetOrCreate(ctx context.Context, userID int64, id usage.Identity) (*usage.Account, error) {
	key := s.accountKey(userID)

	data, err := json.Marshal(usage.NewAccount(userID, id, s.opts.Now()))
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}

	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}
	if created {
		if err := s.client.SAdd(ctx, s.indexKey(), userID).Err(); err != nil {
			return nil, errors.Join(usage.ErrStoreFailure, err)
		}
		s.opts.Logger.DebugContext(ctx, "account created", slog.Int64("user_id", userID))
	}

	return s.load(ctx, s.client, key)
}

// CheckAndReserve runs the quota gate inside an optimistic transaction.
func (s *Store) CheckAndReserve(ctx context.Context, userID int64, d plans.Dimension, amount int64) (usage.Reservation, error) {
	var res usage.Reservation
	err := s.mutate(ctx, userID, func(acc *usage.Account) error {
		r, err := usage.Reserve(acc, s.limits, d, amount, s.opts.Now(), s.opts.ReservationTTL)
		res = r
		return err
	})
	return res, err
}

// Commit applies a reservation once.
func (s *Store) Commit(ctx context.Context, r usage.Reservation) error {
	err := s.mutate(ctx, r.UserID, func(acc *usage.Account) error {
		return usage.Apply(acc, r, s.opts.Now())
	})
	if errors.Is(err, usage.ErrAccountNotFound) {
		return usage.ErrReservationNotFound
	}
	return err
}

// Release drops a reservation without charging it.
func (s *Store) Release(ctx context.Context, r usage.Reservation) error {
	err := s.mutate(ctx, r.UserID, func(acc *usage.Account) error {
		if !usage.Drop(acc, r) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, usage.ErrAccountNotFound) || errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// SetPlan changes the tier and keeps counters.
func (s *Store) SetPlan(ctx context.Context, userID int64, tier plans.Tier) error {
	return s.mutate(ctx, userID, func(acc *usage.Account) error {
		acc.Plan = tier
		acc.UpdatedAt = s.opts.Now()
		return nil
	})
}

// Snapshot returns the stored account with due resets applied to the copy.
func (s *Store) Snapshot(ctx context.Context, userID int64) (*usage.Account, error) {
	acc, err := s.load(ctx, s.client, s.accountKey(userID))
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	usage.ApplyResets(acc, now)
	acc.DropExpired(now)
	return acc, nil
}

// PurgeExpired walks the account index and drops stale reservations.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, errors.Join(usage.ErrStoreFailure, err)
	}

	total := 0
	for _, raw := range ids {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		dropped := 0
		err = s.mutate(ctx, userID, func(acc *usage.Account) error {
			dropped = acc.DropExpired(s.opts.Now())
			if dropped == 0 {
				return errUnchanged
			}
			return nil
		})
		switch {
		case err == nil:
			total += dropped
		case errors.Is(err, errUnchanged), errors.Is(err, usage.ErrAccountNotFound):
		default:
			return total, err
		}
	}
	return total, nil
}

var errUnchanged = errors.New("redisstore: unchanged")

// mutate loads the account under WATCH, applies fn and writes it back in MULTI.
// Quota refusals are persisted too so a reset applied before the refusal sticks.
func (s *Store) mutate(ctx context.Context, userID int64, fn func(*usage.Account) error) error {
	key := s.accountKey(userID)

	for range s.maxRetries {
		var fnErr error
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			acc, err := s.load(ctx, tx, key)
			if err != nil {
				return err
			}

			fnErr = fn(acc)
			if fnErr != nil && !usage.IsRefusal(fnErr) {
				return fnErr
			}

			acc.Version++
			data, err := json.Marshal(acc)
			if err != nil {
				return errors.Join(usage.ErrStoreFailure, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err != nil:
			if isDomainError(err) {
				return err
			}
			return errors.Join(usage.ErrStoreFailure, err)
		default:
			return fnErr
		}
	}

	return usage.ErrConcurrentUpdate
}

func (s *Store) load(ctx context.Context, c redis.Cmdable, key string) (*usage.Account, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, usage.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}

	var acc usage.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}
	return &acc, nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		usage.ErrAccountNotFound,
		usage.ErrReservationNotFound,
		usage.ErrInvalidAmount,
		usage.ErrInvalidDimension,
		usage.ErrStoreFailure,
		plans.ErrPlanNotFound,
		errUnchanged,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
