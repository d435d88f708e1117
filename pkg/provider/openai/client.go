// Package openai is a provider.Client for OpenAI-compatible chat completion
// APIs. Completions are synchronous: Submit carries the whole exchange and
// Poll only hands back the stored outcome.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/provider"
)

type Client struct {
	cfg Config
	hc  *http.Client
	log *slog.Logger
}

var _ provider.Client = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.RequestTimeout},
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Backend() provider.Backend { return provider.BackendOpenAIText }

func (c *Client) Models() []provider.Model { return models() }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Submit runs the completion and stores the outcome on the handle.
func (c *Client) Submit(ctx context.Context, job provider.Job) (provider.Handle, error) {
	if job.Prompt == "" {
		return provider.Handle{}, provider.SubmitFailed(c.Backend(), errors.New("prompt is required"))
	}
	model := c.model(job)

	var resp chatResponse
	if perr := provider.DoJSON(ctx, c.hc, c.Backend(), provider.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.APIKey},
		Body:    c.request(job, model),
	}, &resp); perr != nil {
		return provider.Handle{}, perr
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return provider.Handle{}, provider.Unavailable(c.Backend(), errors.Join(provider.ErrRemoteJob, errors.New("empty completion")))
	}

	out := provider.Outcome{
		Status:           provider.StatusSucceeded,
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}

	c.log.DebugContext(ctx, "chat completion finished",
		slog.String("job_id", resp.ID),
		slog.String("model", model),
		slog.Int("tokens", out.TotalTokens()))

	return provider.Handle{
		Backend: c.Backend(),
		ID:      resp.ID,
		ModelID: model,
		Done:    &out,
	}, nil
}

// Poll returns the outcome stored by Submit.
func (c *Client) Poll(ctx context.Context, h provider.Handle, _ time.Time) provider.Outcome {
	if h.Done != nil {
		return *h.Done
	}
	if ctx.Err() != nil {
		return provider.Failure(provider.TimedOut(c.Backend(), ctx.Err()))
	}
	return provider.Failure(provider.Unavailable(c.Backend(), errors.Join(provider.ErrRemoteJob, errors.New("handle carries no completion"))))
}

// EstimateCost bills the reported token usage.
func (c *Client) EstimateCost(job provider.Job, out provider.Outcome) float64 {
	return TokenCost(c.model(job), out.TotalTokens())
}

func (c *Client) model(job provider.Job) string {
	if job.ModelID != "" {
		return job.ModelID
	}
	if c.cfg.DefaultModel != "" {
		return c.cfg.DefaultModel
	}
	return ModelGPT4o
}

func (c *Client) request(job provider.Job, model string) chatRequest {
	maxTokens := job.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	system := job.SystemPrompt
	if system == "" {
		system = c.cfg.SystemPrompt
	}

	req := chatRequest{
		Model:       model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   maxTokens,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: job.Prompt})
	return req
}
