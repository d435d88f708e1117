package generation

import (
	"context"
	"slices"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

// Status is an account snapshot with its usage projected against the plan.
type Status struct {
	Account *usage.Account `json:"account"`
	Plan    plans.Plan     `json:"plan"`
	Usage   []usage.Stat   `json:"usage"`
}

// Account returns the user's account, creating a FREE one on first contact.
func (d *Dispatcher) Account(ctx context.Context, userID int64, id usage.Identity) (*usage.Account, error) {
	return d.store.GetOrCreate(ctx, userID, id)
}

// Status reports usage for an existing account. Unknown users get
// usage.ErrAccountNotFound.
func (d *Dispatcher) Status(ctx context.Context, userID int64) (*Status, error) {
	acc, err := d.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := d.catalog.LimitsFor(acc.Plan)
	if err != nil {
		return nil, err
	}
	return &Status{Account: acc, Plan: plan, Usage: usage.Stats(acc, plan)}, nil
}

// Upgrade moves the user to tier. Counters are kept; payment is handled
// by the caller.
func (d *Dispatcher) Upgrade(ctx context.Context, userID int64, tier plans.Tier) error {
	if err := d.catalog.Verify(tier); err != nil {
		return err
	}
	if err := d.store.SetPlan(ctx, userID, tier); err != nil {
		return err
	}
	d.opts.log.InfoContext(ctx, "plan changed",
		logger.Component("dispatcher"),
		logger.UserID(userID),
		logger.Tier(tier))
	return nil
}

// Preview compares two tiers without touching any account.
func (d *Dispatcher) Preview(current, target plans.Tier) (*plans.PlanComparison, error) {
	return d.catalog.Compare(current, target)
}

// Plans lists the catalog.
func (d *Dispatcher) Plans() []plans.Plan {
	return d.catalog.All()
}

// Models lists what every configured backend can run, in route order.
func (d *Dispatcher) Models() []provider.Model {
	var out []provider.Model
	seen := make(map[provider.Backend]bool)
	for _, kind := range []provider.Kind{provider.KindText, provider.KindImage, provider.KindVideo, provider.KindMusic} {
		for _, c := range d.Chain(kind) {
			if seen[c.Backend()] {
				continue
			}
			seen[c.Backend()] = true
			out = append(out, c.Models()...)
		}
	}
	return slices.Clip(out)
}
