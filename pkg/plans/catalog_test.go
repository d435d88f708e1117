package plans_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

type failingSource struct{ err error }

func (s failingSource) Load(context.Context) (map[plans.Tier]plans.Plan, error) {
	return nil, s.err
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("default table is complete", func(t *testing.T) {
		t.Parallel()

		c, err := plans.NewCatalog(context.Background(), plans.DefaultSource())
		require.NoError(t, err)
		assert.Len(t, c.All(), len(plans.Tiers))
	})

	t.Run("missing tier fails fast", func(t *testing.T) {
		t.Parallel()

		defaults := plans.DefaultPlans()
		src := plans.NewInMemSource(defaults[:len(defaults)-1]...)

		_, err := plans.NewCatalog(context.Background(), src)
		require.Error(t, err)
		assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
		assert.Contains(t, err.Error(), "alpha")
	})

	t.Run("missing dimension fails fast", func(t *testing.T) {
		t.Parallel()

		defaults := plans.DefaultPlans()
		delete(defaults[0].Limits, plans.MonthlyVideos)

		_, err := plans.NewCatalog(context.Background(), plans.NewInMemSource(defaults...))
		assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
	})

	t.Run("limit below unlimited is rejected", func(t *testing.T) {
		t.Parallel()

		defaults := plans.DefaultPlans()
		defaults[2].Limits[plans.MonthlyImages] = -5

		_, err := plans.NewCatalog(context.Background(), plans.NewInMemSource(defaults...))
		assert.ErrorIs(t, err, plans.ErrInvalidPlanConfiguration)
	})

	t.Run("source error is wrapped", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		_, err := plans.NewCatalog(context.Background(), failingSource{err: boom})
		assert.ErrorIs(t, err, plans.ErrFailedToLoadPlans)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("must catalog panics on invalid table", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			plans.MustCatalog(context.Background(), plans.NewInMemSource())
		})
	})
}

func TestCatalog_DefaultLimits(t *testing.T) {
	t.Parallel()

	c := plans.MustCatalog(context.Background(), plans.DefaultSource())

	tests := []struct {
		tier plans.Tier
		want [6]int64
	}{
		{plans.TierFree, [6]int64{10, 0, 5, 0, 0, 0}},
		{plans.TierMini, [6]int64{100, 0, 10, 5, 0, 0}},
		{plans.TierStarter, [6]int64{0, 25, 30, 10, 0, 0}},
		{plans.TierPro, [6]int64{100, 0, 50, 10, 0, 0}},
		{plans.TierPremium, [6]int64{0, 50, 100, 20, 0, 0}},
		{plans.TierUltimate, [6]int64{0, 100, 200, 50, 0, 0}},
		{plans.TierAlpha, [6]int64{-1, -1, -1, 200, 0, 3_000_000}},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			t.Parallel()

			p, err := c.LimitsFor(tt.tier)
			require.NoError(t, err)
			for i, d := range plans.Dimensions {
				assert.Equal(t, tt.want[i], p.Limit(d), "dimension %s", d)
			}
		})
	}

	t.Run("alpha features", func(t *testing.T) {
		t.Parallel()

		p, err := c.LimitsFor(plans.TierAlpha)
		require.NoError(t, err)
		assert.True(t, p.HasFeature(plans.FeatureCommercialRights))
		assert.True(t, p.HasFeature(plans.FeaturePriorityQueue))
		assert.False(t, p.HasFeature(plans.FeatureStealthMode))
	})
}

func TestCatalog_LimitsForReturnsCopy(t *testing.T) {
	t.Parallel()

	c := plans.MustCatalog(context.Background(), plans.DefaultSource())

	p, err := c.LimitsFor(plans.TierFree)
	require.NoError(t, err)
	p.Limits[plans.MonthlyImages] = 1000

	limit, err := c.Limit(plans.TierFree, plans.MonthlyImages)
	require.NoError(t, err)
	assert.Equal(t, int64(5), limit)
}

func TestCatalog_Verify(t *testing.T) {
	t.Parallel()

	c := plans.MustCatalog(context.Background(), plans.DefaultSource())

	assert.NoError(t, c.Verify(plans.TierUltimate))
	assert.ErrorIs(t, c.Verify(plans.Tier("gold")), plans.ErrUnknownTier)

	_, err := c.Limit(plans.Tier("gold"), plans.MonthlyImages)
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	tier, err := plans.ParseTier(" Premium ")
	require.NoError(t, err)
	assert.Equal(t, plans.TierPremium, tier)

	_, err = plans.ParseTier("enterprise")
	assert.ErrorIs(t, err, plans.ErrUnknownTier)
}

func TestDimension_Window(t *testing.T) {
	t.Parallel()

	assert.Equal(t, plans.Daily, plans.DailyTextA.Window())
	assert.Equal(t, plans.Daily, plans.DailyTextB.Window())
	assert.Equal(t, plans.Monthly, plans.MonthlyDeepTokens.Window())
	assert.False(t, plans.Dimension("weekly_x").Valid())
}
