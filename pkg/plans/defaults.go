package plans

// DefaultPlans returns the built-in plan table.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Tier: TierFree, Name: "Free", PriceUSD: 0,
			Limits: limits(10, 0, 5, 0, 0, 0),
		},
		{
			Tier: TierMini, Name: "Mini", PriceUSD: 3.80,
			Limits: limits(100, 0, 10, 5, 0, 0),
		},
		{
			Tier: TierStarter, Name: "Starter", PriceUSD: 7.97,
			Limits: limits(0, 25, 30, 10, 0, 0),
		},
		{
			Tier: TierPro, Name: "Pro", PriceUSD: 19.99,
			Limits: limits(100, 0, 50, 10, 0, 0),
		},
		{
			Tier: TierPremium, Name: "Premium", PriceUSD: 12.97,
			Limits: limits(0, 50, 100, 20, 0, 0),
		},
		{
			Tier: TierUltimate, Name: "Ultimate", PriceUSD: 18.38,
			Limits: limits(0, 100, 200, 50, 0, 0),
		},
		{
			Tier: TierAlpha, Name: "Alpha", PriceUSD: 44.95,
			Limits:   limits(Unlimited, Unlimited, Unlimited, 200, 0, 3_000_000),
			Features: []Feature{FeatureCommercialRights, FeaturePriorityQueue},
		},
	}
}

// DefaultSource returns a Source serving DefaultPlans.
func DefaultSource() Source {
	return NewInMemSource(DefaultPlans()...)
}

func limits(textA, textB, images, music, videos, deepTokens int64) map[Dimension]int64 {
	return map[Dimension]int64{
		DailyTextA:        textA,
		DailyTextB:        textB,
		MonthlyImages:     images,
		MonthlyMusic:      music,
		MonthlyVideos:     videos,
		MonthlyDeepTokens: deepTokens,
	}
}
