package generation

import (
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

// TextTier selects which text quota a TEXT request draws from.
type TextTier string

const (
	TextAuto TextTier = "auto" // fast when the plan has it, deep otherwise
	TextFast TextTier = "fast" // daily_text_a
	TextDeep TextTier = "deep" // daily_text_b
	TextLong TextTier = "long" // monthly_deep_tokens, charged by token budget
)

// ParseTextTier accepts an empty string as TextAuto.
func ParseTextTier(s string) (TextTier, error) {
	switch t := TextTier(s); t {
	case "":
		return TextAuto, nil
	case TextAuto, TextFast, TextDeep, TextLong:
		return t, nil
	}
	return "", ErrUnknownTextTier
}

// Request is one generation asked for by a collaborator.
type Request struct {
	UserID   int64
	Identity usage.Identity
	Kind     provider.Kind
	Prompt   string
	TextTier TextTier

	// MaxTokens is the token budget of a long-context text request.
	// Zero uses the dispatcher default.
	MaxTokens int
}

// ErrorKind is the failure class reported to collaborators.
type ErrorKind string

const (
	KindQuotaExceeded       ErrorKind = "QuotaExceeded"
	KindFeatureNotOnPlan    ErrorKind = "FeatureNotOnPlan"
	KindProviderUnavailable ErrorKind = "ProviderUnavailable"
	KindTimeout             ErrorKind = "Timeout"
	KindInvalidRequest      ErrorKind = "InvalidRequest"
)

// Result is the uniform outcome of Generate. Success results carry the asset
// and billing fields; failures carry ErrorKind and Detail only.
type Result struct {
	Success bool `json:"success"`

	AssetURL  string           `json:"asset_url,omitempty"`
	SourceURL string           `json:"source_url,omitempty"` // provider URL when the asset was mirrored
	Text      string           `json:"text,omitempty"`
	CostUSD   float64          `json:"cost_usd,omitempty"`
	Provider  provider.Backend `json:"provider,omitempty"`
	ModelID   string           `json:"model_id,omitempty"`

	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`

	State State `json:"state"`
}

func failure(kind ErrorKind, detail string) *Result {
	return &Result{ErrorKind: kind, Detail: detail, State: StateResolvedFailure}
}
