package generation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/usage"
	"github.com/dmitrymomot/gengate/svc/generation"
)

func TestUpgrade(t *testing.T) {
	t.Parallel()

	primary := succeeding(provider.BackendFalImage, "u", 0)
	h := newHarness(t, []provider.Client{primary})
	ctx := context.Background()
	user := h.user(t, 1, plans.TierFree)

	require.True(t, h.d.Generate(ctx, imageRequest(user)).Success)

	assert.ErrorIs(t, h.d.Upgrade(ctx, user, plans.Tier("diamond")), plans.ErrUnknownTier)
	assert.ErrorIs(t, h.d.Upgrade(ctx, 999, plans.TierPro), usage.ErrAccountNotFound)

	require.NoError(t, h.d.Upgrade(ctx, user, plans.TierPremium))
	st, err := h.d.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, plans.TierPremium, st.Account.Plan)
	assert.EqualValues(t, 1, st.Account.Count(plans.MonthlyImages), "upgrade keeps counters")

	res := h.d.Generate(ctx, imageRequest(user))
	require.True(t, res.Success)
	assert.Equal(t, "fal-ai/flux-pro", res.ModelID)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []provider.Client{succeeding(provider.BackendFalImage, "u", 0)})
	ctx := context.Background()

	_, err := h.d.Status(ctx, 404)
	assert.ErrorIs(t, err, usage.ErrAccountNotFound)

	user := h.user(t, 1, plans.TierAlpha)
	require.True(t, h.d.Generate(ctx, imageRequest(user)).Success)

	st, err := h.d.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, plans.TierAlpha, st.Plan.Tier)
	require.Len(t, st.Usage, len(plans.Dimensions))
	for _, s := range st.Usage {
		switch s.Dimension {
		case plans.MonthlyImages:
			assert.EqualValues(t, 1, s.Used)
			assert.EqualValues(t, -1, s.Remaining)
		case plans.MonthlyVideos:
			assert.False(t, s.Available)
		}
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	cmp, err := h.d.Preview(plans.TierFree, plans.TierAlpha)
	require.NoError(t, err)
	assert.False(t, cmp.IsDowngrade())
	assert.Contains(t, cmp.NewFeatures, plans.FeatureCommercialRights)
	assert.Contains(t, cmp.IncreasedLimits, plans.MonthlyDeepTokens)

	cmp, err = h.d.Preview(plans.TierAlpha, plans.TierFree)
	require.NoError(t, err)
	assert.True(t, cmp.IsDowngrade())

	_, err = h.d.Preview(plans.TierFree, plans.Tier("nope"))
	assert.Error(t, err)
}

func TestPlansAndModels(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []provider.Client{
		succeeding(provider.BackendReplicateImage, "u", 0),
		succeeding(provider.BackendFalImage, "u", 0),
		succeeding(provider.BackendOpenAIText, "u", 0),
	})

	all := h.d.Plans()
	require.Len(t, all, len(plans.Tiers))
	assert.Equal(t, plans.TierFree, all[0].Tier)

	models := h.d.Models()
	require.Len(t, models, 3)
	assert.Equal(t, provider.BackendOpenAIText, models[0].Backend)
	assert.Equal(t, provider.BackendFalImage, models[1].Backend)
	assert.Equal(t, provider.BackendReplicateImage, models[2].Backend)
}

func TestParseTextTier(t *testing.T) {
	t.Parallel()

	tier, err := generation.ParseTextTier("")
	require.NoError(t, err)
	assert.Equal(t, generation.TextAuto, tier)

	tier, err = generation.ParseTextTier("long")
	require.NoError(t, err)
	assert.Equal(t, generation.TextLong, tier)

	_, err = generation.ParseTextTier("turbo")
	assert.ErrorIs(t, err, generation.ErrUnknownTextTier)
}
