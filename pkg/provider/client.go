package provider

import (
	"context"
	"time"
)

// Client talks to one remote generation backend.
type Client interface {
	// Backend is the fixed identity of this client.
	Backend() Backend

	// Models lists the model ids the client knows a price for.
	Models() []Model

	// Submit posts the job and returns a handle. Errors are always *Error
	// with kind SubmitError or ProviderUnavailable.
	Submit(ctx context.Context, job Job) (Handle, error)

	// Poll waits for the job to finish. It checks the remote status every
	// DefaultPollInterval until the job succeeds, fails or deadline passes.
	// Context cancellation ends polling with a Timeout outcome; the remote
	// job is abandoned.
	Poll(ctx context.Context, h Handle, deadline time.Time) Outcome

	// EstimateCost prices a finished job in USD without network calls.
	// It is never negative; unknown models use a default rate.
	EstimateCost(job Job, out Outcome) float64
}

// Model describes a priced model offered by a backend.
type Model struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Backend Backend `json:"backend"`
	Unit    string  `json:"unit"` // megapixel, video, second, image, 1k_tokens
	Price   float64 `json:"price_usd"`
}
