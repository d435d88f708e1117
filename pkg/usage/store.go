package usage

import (
	"context"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

// Store owns the usage state of every account. Implementations serialize
// CheckAndReserve, Commit and Release per account and never across accounts.
type Store interface {
	// GetOrCreate returns the existing account or creates a FREE one.
	GetOrCreate(ctx context.Context, userID int64, id Identity) (*Account, error)

	// CheckAndReserve applies due resets, checks the plan limit for the
	// dimension and, if the request fits, records a pending reservation.
	// Counters are not changed.
	CheckAndReserve(ctx context.Context, userID int64, d plans.Dimension, amount int64) (Reservation, error)

	// Commit turns a reservation into usage. A reservation can be committed once;
	// the second call returns ErrReservationNotFound and changes nothing.
	Commit(ctx context.Context, r Reservation) error

	// Release drops a reservation without charging it. Unknown reservations are ignored.
	Release(ctx context.Context, r Reservation) error

	// SetPlan changes the account's tier. Counters are kept.
	SetPlan(ctx context.Context, userID int64, tier plans.Tier) error

	// Snapshot returns a copy of the account with due resets applied to the copy only.
	Snapshot(ctx context.Context, userID int64) (*Account, error)

	// PurgeExpired removes reservations whose TTL has passed.
	PurgeExpired(ctx context.Context) (int, error)
}

// Limits resolves a plan limit. *plans.Catalog satisfies it.
type Limits interface {
	Limit(tier plans.Tier, d plans.Dimension) (int64, error)
}
