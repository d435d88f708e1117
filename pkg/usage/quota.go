package usage

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

// MaxAmount bounds a single reservation so counter sums cannot overflow.
const MaxAmount int64 = 1 << 40

// CheckLimit decides whether amount more units fit under limit given what is
// already used and reserved.
func CheckLimit(d plans.Dimension, limit, used, amount int64) error {
	switch {
	case limit == 0:
		return &QuotaError{Dimension: d, Limit: 0, Used: used, Requested: amount, err: ErrFeatureNotOnPlan}
	case limit == plans.Unlimited:
		return nil
	case amount > limit-used:
		return &QuotaError{Dimension: d, Limit: limit, Used: used, Requested: amount, err: ErrQuotaExceeded}
	}
	return nil
}

// ValidateRequest rejects malformed reservation requests.
func ValidateRequest(d plans.Dimension, amount int64) error {
	if !d.Valid() {
		return ErrInvalidDimension
	}
	if amount <= 0 || amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// NewReservation issues a token for the given request.
func NewReservation(userID int64, d plans.Dimension, amount int64, now time.Time, ttl time.Duration) Reservation {
	return Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		Dimension: d,
		Amount:    amount,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Reserve runs the quota gate against an account document: resets first, then
// the limit check counting live reservations, then appends the new reservation.
// The caller must hold the account's critical section and persist acc on success.
func Reserve(acc *Account, lim Limits, d plans.Dimension, amount int64, now time.Time, ttl time.Duration) (Reservation, error) {
	if err := ValidateRequest(d, amount); err != nil {
		return Reservation{}, err
	}

	ApplyResets(acc, now)
	acc.DropExpired(now)

	limit, err := lim.Limit(acc.Plan, d)
	if err != nil {
		return Reservation{}, err
	}

	if err := CheckLimit(d, limit, acc.Count(d)+acc.PendingAmount(d, now), amount); err != nil {
		return Reservation{}, err
	}

	r := NewReservation(acc.UserID, d, amount, now, ttl)
	acc.Pending = append(acc.Pending, r)
	return r, nil
}

// Apply commits a pending reservation held by acc.
// The caller must hold the account's critical section and persist acc on success.
func Apply(acc *Account, r Reservation, now time.Time) error {
	idx := slices.IndexFunc(acc.Pending, func(p Reservation) bool { return p.ID == r.ID })
	if idx < 0 {
		return ErrReservationNotFound
	}
	held := acc.Pending[idx]
	acc.Pending = slices.Delete(acc.Pending, idx, idx+1)

	ApplyResets(acc, now)
	acc.Counters[held.Dimension] += held.Amount
	acc.UpdatedAt = now
	return nil
}

// Drop removes a pending reservation. It reports whether one was found.
func Drop(acc *Account, r Reservation) bool {
	before := len(acc.Pending)
	acc.Pending = slices.DeleteFunc(acc.Pending, func(p Reservation) bool { return p.ID == r.ID })
	return len(acc.Pending) != before
}

// IsRefusal reports whether err is a quota decision rather than a fault.
func IsRefusal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrFeatureNotOnPlan)
}
