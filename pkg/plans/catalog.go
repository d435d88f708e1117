package plans

import (
	"context"
	"errors"
	"fmt"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[Tier]Plan, error)
}

// Catalog is the immutable tier to plan mapping.
// It is safe for concurrent use without locking.
type Catalog struct {
	plans map[Tier]Plan
}

// NewCatalog loads plans from src and validates that the table is complete:
// every tier is present and every plan defines every dimension.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(loaded); err != nil {
		return nil, err
	}

	plans := make(map[Tier]Plan, len(loaded))
	for tier, p := range loaded {
		p.Tier = tier
		plans[tier] = clonePlan(p)
	}

	return &Catalog{plans: plans}, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(ctx context.Context, src Source) *Catalog {
	c, err := NewCatalog(ctx, src)
	if err != nil {
		panic(err)
	}
	return c
}

// LimitsFor returns the plan for a tier.
// The catalog was validated at construction, so a known tier always resolves.
func (c *Catalog) LimitsFor(tier Tier) (Plan, error) {
	p, ok := c.plans[tier]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return clonePlan(p), nil
}

// Limit returns a single dimension limit for a tier.
func (c *Catalog) Limit(tier Tier, d Dimension) (int64, error) {
	p, ok := c.plans[tier]
	if !ok {
		return 0, ErrPlanNotFound
	}
	return p.Limit(d), nil
}

// Verify checks that the tier exists in the catalog.
func (c *Catalog) Verify(tier Tier) error {
	if !tier.Valid() {
		return ErrUnknownTier
	}
	if _, ok := c.plans[tier]; !ok {
		return ErrPlanNotFound
	}
	return nil
}

// All returns every plan ordered by tier.
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, t := range Tiers {
		if p, ok := c.plans[t]; ok {
			out = append(out, clonePlan(p))
		}
	}
	return out
}

// Compare returns the differences between two tiers.
func (c *Catalog) Compare(current, target Tier) (*PlanComparison, error) {
	from, ok := c.plans[current]
	if !ok {
		return nil, ErrPlanNotFound
	}
	to, ok := c.plans[target]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return ComparePlans(&from, &to), nil
}

func validatePlans(plans map[Tier]Plan) error {
	for _, tier := range Tiers {
		p, ok := plans[tier]
		if !ok {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("missing plan for tier %s", tier))
		}
		for _, d := range Dimensions {
			limit, ok := p.Limits[d]
			if !ok {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s does not define dimension %s", tier, d))
			}
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has invalid limit %d for %s", tier, limit, d))
			}
		}
		if p.PriceUSD < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative price", tier))
		}
	}
	for tier := range plans {
		if !tier.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("unknown tier %q", tier))
		}
	}
	return nil
}
