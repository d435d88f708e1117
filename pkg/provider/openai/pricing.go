package openai

import "github.com/dmitrymomot/gengate/pkg/provider"

const (
	ModelGPT4o           = "gpt-4o"
	ModelGPT4oMini       = "gpt-4o-mini"
	ModelGPT4            = "gpt-4"
	ModelClaude35Sonnet  = "claude-3-5-sonnet"
	DefaultThousandPrice = 0.002
)

// Prices per 1K tokens.
var thousandPrice = map[string]float64{
	ModelGPT4o:          0.005,
	ModelGPT4:           0.03,
	ModelClaude35Sonnet: 0.003,
}

// TokenCost bills total tokens at the model's per-1K rate.
func TokenCost(model string, tokens int) float64 {
	return provider.ClampCost(float64(max(tokens, 0)) / 1000 * provider.Rate(thousandPrice, model, DefaultThousandPrice))
}

func models() []provider.Model {
	b := provider.BackendOpenAIText
	return []provider.Model{
		{ID: ModelGPT4o, Name: "GPT-4o", Backend: b, Unit: "1k tokens", Price: thousandPrice[ModelGPT4o]},
		{ID: ModelGPT4oMini, Name: "GPT-4o mini", Backend: b, Unit: "1k tokens", Price: DefaultThousandPrice},
		{ID: ModelGPT4, Name: "GPT-4", Backend: b, Unit: "1k tokens", Price: thousandPrice[ModelGPT4]},
		{ID: ModelClaude35Sonnet, Name: "Claude 3.5 Sonnet", Backend: b, Unit: "1k tokens", Price: thousandPrice[ModelClaude35Sonnet]},
	}
}
