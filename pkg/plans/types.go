package plans

import "strings"

// Tier identifies a subscription plan.
type Tier string

// Known plan tiers, ordered from cheapest to most capable.
const (
	TierFree     Tier = "free"
	TierMini     Tier = "mini"
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierPremium  Tier = "premium"
	TierUltimate Tier = "ultimate"
	TierAlpha    Tier = "alpha"
)

// Tiers lists every tier the catalog must define.
var Tiers = []Tier{TierFree, TierMini, TierStarter, TierPro, TierPremium, TierUltimate, TierAlpha}

// ParseTier converts a case-insensitive tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrUnknownTier
	}
	return t, nil
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

func (t Tier) String() string { return string(t) }

// Window is the reset period of a quota dimension.
type Window int

const (
	Daily Window = iota + 1
	Monthly
)

func (w Window) String() string {
	switch w {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Dimension is one countable resource tracked per account.
type Dimension string

// Quota dimensions.
const (
	DailyTextA        Dimension = "daily_text_a"
	DailyTextB        Dimension = "daily_text_b"
	MonthlyImages     Dimension = "monthly_images"
	MonthlyMusic      Dimension = "monthly_music"
	MonthlyVideos     Dimension = "monthly_videos"
	MonthlyDeepTokens Dimension = "monthly_deep_tokens"
)

// Dimensions lists all quota dimensions in a stable order.
var Dimensions = []Dimension{DailyTextA, DailyTextB, MonthlyImages, MonthlyMusic, MonthlyVideos, MonthlyDeepTokens}

// Window returns the reset period of the dimension.
func (d Dimension) Window() Window {
	switch d {
	case DailyTextA, DailyTextB:
		return Daily
	case MonthlyImages, MonthlyMusic, MonthlyVideos, MonthlyDeepTokens:
		return Monthly
	default:
		return 0
	}
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool { return d.Window() != 0 }

func (d Dimension) String() string { return string(d) }

// Unlimited marks a dimension without an upper bound.
const Unlimited int64 = -1

// Feature is a plan-specific capability flag.
type Feature string

const (
	FeatureCommercialRights Feature = "commercial_rights"
	FeaturePriorityQueue    Feature = "priority_queue"
	FeatureStealthMode      Feature = "stealth_mode"
)
