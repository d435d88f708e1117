package plans

import (
	"maps"
	"slices"
)

// Plan describes a subscription tier and the quotas it grants.
type Plan struct {
	Tier     Tier                `json:"tier" yaml:"tier"`
	Name     string              `json:"name" yaml:"name"`
	PriceUSD float64             `json:"price_usd" yaml:"price_usd"`
	Limits   map[Dimension]int64 `json:"limits" yaml:"limits"`
	Features []Feature           `json:"features" yaml:"features"`
}

// Limit returns the plan's limit for a dimension.
// Missing dimensions are reported as 0 (not available).
func (p Plan) Limit(d Dimension) int64 {
	return p.Limits[d]
}

// HasFeature reports whether the feature flag is enabled on the plan.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// PlanComparison contains the differences between two plans.
type PlanComparison struct {
	From            Tier                      `json:"from"`
	To              Tier                      `json:"to"`
	PriceDeltaUSD   float64                   `json:"price_delta_usd"`
	NewFeatures     []Feature                 `json:"new_features"`
	LostFeatures    []Feature                 `json:"lost_features"`
	IncreasedLimits map[Dimension]LimitChange `json:"increased_limits"`
	DecreasedLimits map[Dimension]LimitChange `json:"decreased_limits"`
}

// LimitChange represents a change of a dimension limit.
type LimitChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// IsDowngrade reports whether the target plan takes anything away.
func (c *PlanComparison) IsDowngrade() bool {
	return len(c.DecreasedLimits) > 0 || len(c.LostFeatures) > 0
}

// ComparePlans returns the differences between current and target plans.
func ComparePlans(current, target *Plan) *PlanComparison {
	if current == nil || target == nil {
		return nil
	}

	cmp := &PlanComparison{
		From:            current.Tier,
		To:              target.Tier,
		PriceDeltaUSD:   target.PriceUSD - current.PriceUSD,
		NewFeatures:     make([]Feature, 0),
		LostFeatures:    make([]Feature, 0),
		IncreasedLimits: make(map[Dimension]LimitChange),
		DecreasedLimits: make(map[Dimension]LimitChange),
	}

	for _, f := range target.Features {
		if !current.HasFeature(f) {
			cmp.NewFeatures = append(cmp.NewFeatures, f)
		}
	}
	for _, f := range current.Features {
		if !target.HasFeature(f) {
			cmp.LostFeatures = append(cmp.LostFeatures, f)
		}
	}

	for _, d := range Dimensions {
		from, to := current.Limit(d), target.Limit(d)
		if from == to {
			continue
		}
		change := LimitChange{From: from, To: to}
		if isIncrease(from, to) {
			cmp.IncreasedLimits[d] = change
		} else {
			cmp.DecreasedLimits[d] = change
		}
	}

	return cmp
}

// isIncrease orders limits with Unlimited above any finite value.
func isIncrease(from, to int64) bool {
	switch {
	case from == Unlimited:
		return false
	case to == Unlimited:
		return true
	default:
		return to > from
	}
}

func clonePlan(p Plan) Plan {
	return Plan{
		Tier:     p.Tier,
		Name:     p.Name,
		PriceUSD: p.PriceUSD,
		Limits:   maps.Clone(p.Limits),
		Features: slices.Clone(p.Features),
	}
}
