package usage

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

// Window lengths. A month is a fixed 30 day window, not a calendar month.
const (
	DailyWindow   = 24 * time.Hour
	MonthlyWindow = 30 * DailyWindow
)

// Identity carries the display fields supplied by the chat layer.
type Identity struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Account is the usage state of one user.
type Account struct {
	UserID int64 `json:"user_id"`
	Identity
	Plan             plans.Tier                `json:"plan"`
	Counters         map[plans.Dimension]int64 `json:"counters"`
	Pending          []Reservation             `json:"pending,omitempty"`
	LastDailyReset   time.Time                 `json:"last_daily_reset"`
	LastMonthlyReset time.Time                 `json:"last_monthly_reset"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	Version          int64                     `json:"version"`
}

// NewAccount returns a FREE account with zero counters and both resets at now.
func NewAccount(userID int64, id Identity, now time.Time) *Account {
	counters := make(map[plans.Dimension]int64, len(plans.Dimensions))
	for _, d := range plans.Dimensions {
		counters[d] = 0
	}
	return &Account{
		UserID:           userID,
		Identity:         id,
		Plan:             plans.TierFree,
		Counters:         counters,
		LastDailyReset:   now,
		LastMonthlyReset: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Counters = maps.Clone(a.Counters)
	if cp.Counters == nil {
		cp.Counters = make(map[plans.Dimension]int64)
	}
	cp.Pending = slices.Clone(a.Pending)
	return &cp
}

// Count returns the committed usage of a dimension.
func (a *Account) Count(d plans.Dimension) int64 {
	return a.Counters[d]
}

// PendingAmount sums live reservations for a dimension.
func (a *Account) PendingAmount(d plans.Dimension, now time.Time) int64 {
	var total int64
	for _, r := range a.Pending {
		if r.Dimension == d && !r.Expired(now) {
			total += r.Amount
		}
	}
	return total
}

// DropExpired removes reservations whose TTL has passed and returns how many were dropped.
func (a *Account) DropExpired(now time.Time) int {
	before := len(a.Pending)
	a.Pending = slices.DeleteFunc(a.Pending, func(r Reservation) bool { return r.Expired(now) })
	return before - len(a.Pending)
}

// ApplyResets zeroes counters whose window has elapsed. It reports whether
// anything changed. Calling it twice within a window resets at most once.
func ApplyResets(a *Account, now time.Time) bool {
	if a.Counters == nil {
		a.Counters = make(map[plans.Dimension]int64, len(plans.Dimensions))
	}
	changed := false
	if now.Sub(a.LastDailyReset) >= DailyWindow {
		resetWindow(a, plans.Daily)
		a.LastDailyReset = now
		changed = true
	}
	if now.Sub(a.LastMonthlyReset) >= MonthlyWindow {
		resetWindow(a, plans.Monthly)
		a.LastMonthlyReset = now
		changed = true
	}
	return changed
}

func resetWindow(a *Account, w plans.Window) {
	for _, d := range plans.Dimensions {
		if d.Window() == w {
			a.Counters[d] = 0
		}
	}
}

// Reservation is a one-shot token proving that a quota check passed.
type Reservation struct {
	ID        uuid.UUID       `json:"id"`
	UserID    int64           `json:"user_id"`
	Dimension plans.Dimension `json:"dimension"`
	Amount    int64           `json:"amount"`
	IssuedAt  time.Time       `json:"issued_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the reservation no longer holds quota.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
