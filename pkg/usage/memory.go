package usage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

// MemoryStore keeps accounts in process memory. Each account has its own
// mutex; the map lock is only held to find or insert an entry.
type MemoryStore struct {
	limits Limits
	opts   Options

	mu       sync.RWMutex
	accounts map[int64]*memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	acc *Account
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(limits Limits, opts ...Option) *MemoryStore {
	return &MemoryStore{
		limits:   limits,
		opts:     NewOptions(opts...),
		accounts: make(map[int64]*memoryEntry),
	}
}

func (s *MemoryStore) entry(userID int64) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[userID]
	return e, ok
}

// GetOrCreate returns the existing account or creates a FREE one.
func (s *MemoryStore) GetOrCreate(ctx context.Context, userID int64, id Identity) (*Account, error) {
	if e, ok := s.entry(userID); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.acc.Clone(), nil
	}

	s.mu.Lock()
	e, ok := s.accounts[userID]
	if !ok {
		e = &memoryEntry{acc: NewAccount(userID, id, s.opts.Now())}
		s.accounts[userID] = e
		s.opts.Logger.DebugContext(ctx, "account created", slog.Int64("user_id", userID))
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc.Clone(), nil
}

// CheckAndReserve runs the quota gate under the account's mutex.
func (s *MemoryStore) CheckAndReserve(ctx context.Context, userID int64, d plans.Dimension, amount int64) (Reservation, error) {
	e, ok := s.entry(userID)
	if !ok {
		return Reservation{}, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return Reserve(e.acc, s.limits, d, amount, s.opts.Now(), s.opts.ReservationTTL)
}

// Commit applies a reservation once.
func (s *MemoryStore) Commit(ctx context.Context, r Reservation) error {
	e, ok := s.entry(r.UserID)
	if !ok {
		return ErrReservationNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return Apply(e.acc, r, s.opts.Now())
}

// Release drops a reservation without charging it.
func (s *MemoryStore) Release(ctx context.Context, r Reservation) error {
	e, ok := s.entry(r.UserID)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	Drop(e.acc, r)
	return nil
}

// SetPlan changes the account tier without touching counters.
func (s *MemoryStore) SetPlan(ctx context.Context, userID int64, tier plans.Tier) error {
	e, ok := s.entry(userID)
	if !ok {
		return ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.acc.Plan = tier
	e.acc.UpdatedAt = s.opts.Now()
	return nil
}

// Snapshot returns a copy with due resets applied to the copy.
func (s *MemoryStore) Snapshot(ctx context.Context, userID int64) (*Account, error) {
	e, ok := s.entry(userID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	acc := e.acc.Clone()
	e.mu.Unlock()

	now := s.opts.Now()
	ApplyResets(acc, now)
	acc.DropExpired(now)
	return acc, nil
}

// PurgeExpired drops stale reservations from every account.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.accounts))
	for _, e := range s.accounts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	now := s.opts.Now()
	total := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		e.mu.Lock()
		total += e.acc.DropExpired(now)
		e.mu.Unlock()
	}
	return total, nil
}
