package generation

import (
	"time"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/provider/fal"
	"github.com/dmitrymomot/gengate/pkg/provider/openai"
	"github.com/dmitrymomot/gengate/pkg/provider/replicate"
)

// DefaultRoutes is the backend preference per kind, primary first.
// Backends without a configured client are skipped.
func DefaultRoutes() map[provider.Kind][]provider.Backend {
	return map[provider.Kind][]provider.Backend{
		provider.KindImage: {provider.BackendFalImage, provider.BackendReplicateImage},
		provider.KindVideo: {provider.BackendFalVideo, provider.BackendReplicateVideo},
		provider.KindMusic: {provider.BackendReplicateMusic},
		provider.KindText:  {provider.BackendOpenAIText},
	}
}

// DefaultDeadlines bound a single attempt, submit and polling included.
// Each fallback attempt gets a fresh deadline.
func DefaultDeadlines() map[provider.Kind]time.Duration {
	return map[provider.Kind]time.Duration{
		provider.KindImage: 60 * time.Second,
		provider.KindVideo: 300 * time.Second,
		provider.KindMusic: 180 * time.Second,
		provider.KindText:  60 * time.Second,
	}
}

// DefaultLongContextBudget is the token budget reserved for a long-context
// request that does not name one.
const DefaultLongContextBudget = 8000

// MaxTokenBudget is the largest max_tokens a long-context request may ask for.
const MaxTokenBudget = 200_000

// ModelSelector picks the model a backend runs for a plan.
type ModelSelector func(b provider.Backend, tier plans.Tier, text TextTier) string

// DefaultModel mirrors the plan ladder: entry plans get the fast model,
// PRO the dev model and higher tiers the pro model.
func DefaultModel(b provider.Backend, tier plans.Tier, text TextTier) string {
	switch b {
	case provider.BackendFalImage:
		switch imageClass(tier) {
		case classEntry:
			return fal.ModelFluxSchnell
		case classPro:
			return fal.ModelFluxDev
		default:
			return fal.ModelFluxPro
		}
	case provider.BackendReplicateImage:
		switch imageClass(tier) {
		case classEntry:
			return replicate.ModelFluxSchnell
		case classPro:
			return replicate.ModelFluxDev
		default:
			return replicate.ModelFluxPro
		}
	case provider.BackendFalVideo:
		return fal.ModelLumaDream
	case provider.BackendReplicateVideo:
		return replicate.ModelMinimaxVideo
	case provider.BackendReplicateMusic:
		return replicate.ModelMusicGen
	case provider.BackendOpenAIText:
		switch text {
		case TextDeep:
			return openai.ModelGPT4
		case TextLong:
			return openai.ModelClaude35Sonnet
		}
		return openai.ModelGPT4o
	}
	return ""
}

type modelClass int

const (
	classEntry modelClass = iota
	classPro
	classTop
)

func imageClass(tier plans.Tier) modelClass {
	switch tier {
	case plans.TierFree, plans.TierMini, plans.TierStarter:
		return classEntry
	case plans.TierPro:
		return classPro
	default:
		return classTop
	}
}
