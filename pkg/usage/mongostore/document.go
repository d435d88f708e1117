package mongostore

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

type accountDoc struct {
	UserID           int64            `bson:"_id"`
	Username         string           `bson:"username"`
	FirstName        string           `bson:"first_name"`
	LastName         string           `bson:"last_name"`
	Plan             string           `bson:"plan"`
	Counters         map[string]int64 `bson:"counters"`
	Pending          []reservationDoc `bson:"pending"`
	LastDailyReset   time.Time        `bson:"last_daily_reset"`
	LastMonthlyReset time.Time        `bson:"last_monthly_reset"`
	CreatedAt        time.Time        `bson:"created_at"`
	UpdatedAt        time.Time        `bson:"updated_at"`
	Version          int64            `bson:"version"`
}

type reservationDoc struct {
	ID        string    `bson:"id"`
	Dimension string    `bson:"dimension"`
	Amount    int64     `bson:"amount"`
	IssuedAt  time.Time `bson:"issued_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func toDoc(acc *usage.Account) accountDoc {
	counters := make(map[string]int64, len(acc.Counters))
	for d, v := range acc.Counters {
		counters[string(d)] = v
	}
	pending := make([]reservationDoc, 0, len(acc.Pending))
	for _, r := range acc.Pending {
		pending = append(pending, reservationDoc{
			ID:        r.ID.String(),
			Dimension: string(r.Dimension),
			Amount:    r.Amount,
			IssuedAt:  r.IssuedAt,
			ExpiresAt: r.ExpiresAt,
		})
	}
	return accountDoc{
		UserID:           acc.UserID,
		Username:         acc.Username,
		FirstName:        acc.FirstName,
		LastName:         acc.LastName,
		Plan:             string(acc.Plan),
		Counters:         counters,
		Pending:          pending,
		LastDailyReset:   acc.LastDailyReset,
		LastMonthlyReset: acc.LastMonthlyReset,
		CreatedAt:        acc.CreatedAt,
		UpdatedAt:        acc.UpdatedAt,
		Version:          acc.Version,
	}
}

func (d accountDoc) toAccount() *usage.Account {
	acc := &usage.Account{
		UserID: d.UserID,
		Identity: usage.Identity{
			Username:  d.Username,
			FirstName: d.FirstName,
			LastName:  d.LastName,
		},
		Plan:             plans.Tier(d.Plan),
		Counters:         make(map[plans.Dimension]int64, len(plans.Dimensions)),
		LastDailyReset:   d.LastDailyReset.UTC(),
		LastMonthlyReset: d.LastMonthlyReset.UTC(),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
	for k, v := range d.Counters {
		acc.Counters[plans.Dimension(k)] = v
	}
	for _, r := range d.Pending {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		acc.Pending = append(acc.Pending, usage.Reservation{
			ID:        id,
			UserID:    d.UserID,
			Dimension: plans.Dimension(r.Dimension),
			Amount:    r.Amount,
			IssuedAt:  r.IssuedAt.UTC(),
			ExpiresAt: r.ExpiresAt.UTC(),
		})
	}
	return acc
}
