// Package replicate is a provider.Client for the Replicate predictions API.
package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/provider"
)

type Client struct {
	backend provider.Backend
	cfg     Config
	hc      *http.Client
	log     *slog.Logger
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

func NewImageClient(cfg Config, opts ...Option) *Client {
	return newClient(provider.BackendReplicateImage, cfg, opts...)
}

func NewMusicClient(cfg Config, opts ...Option) *Client {
	return newClient(provider.BackendReplicateMusic, cfg, opts...)
}

func NewVideoClient(cfg Config, opts ...Option) *Client {
	return newClient(provider.BackendReplicateVideo, cfg, opts...)
}

func newClient(b provider.Backend, cfg Config, opts ...Option) *Client {
	c := &Client{
		backend: b,
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.RequestTimeout},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Backend() provider.Backend { return c.backend }

func (c *Client) Models() []provider.Model { return models(c.backend) }

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Submit creates a prediction on the model endpoint. Replicate answers 201.
func (c *Client) Submit(ctx context.Context, job provider.Job) (provider.Handle, error) {
	if job.ModelID == "" {
		return provider.Handle{}, provider.SubmitFailed(c.backend, errors.New("model id is required"))
	}

	var p prediction
	if perr := provider.DoJSON(ctx, c.hc, c.backend, provider.Request{
		Method:  http.MethodPost,
		URL:     c.url("/models/" + strings.TrimLeft(job.ModelID, "/") + "/predictions"),
		Headers: c.headers(),
		Body:    map[string]any{"input": c.input(job)},
		Expect:  []int{http.StatusCreated, http.StatusOK, http.StatusAccepted},
	}, &p); perr != nil {
		return provider.Handle{}, perr
	}
	if p.ID == "" {
		return provider.Handle{}, provider.Unavailable(c.backend, errors.New("prediction has no id"))
	}

	c.log.DebugContext(ctx, "replicate prediction created",
		slog.String("backend", string(c.backend)),
		slog.String("job_id", p.ID),
		slog.String("model", job.ModelID))

	return provider.Handle{
		Backend:   c.backend,
		ID:        p.ID,
		ModelID:   job.ModelID,
		StatusURL: c.url("/predictions/" + p.ID),
	}, nil
}

// Poll reads the prediction until it succeeds, fails or is cancelled.
func (c *Client) Poll(ctx context.Context, h provider.Handle, deadline time.Time) provider.Outcome {
	if h.Done != nil {
		return *h.Done
	}
	return provider.PollUntil(ctx, c.backend, deadline, c.cfg.PollInterval, func(ctx context.Context) (provider.Outcome, bool) {
		var p prediction
		if perr := provider.DoJSON(ctx, c.hc, c.backend, provider.Request{
			Method:  http.MethodGet,
			URL:     h.StatusURL,
			Headers: c.headers(),
		}, &p); perr != nil {
			if perr.Kind == provider.SubmitError {
				return provider.Failure(perr), true
			}
			c.log.DebugContext(ctx, "replicate status check failed, retrying",
				slog.String("job_id", h.ID),
				slog.String("error", perr.Error()))
			return provider.Outcome{}, false
		}

		switch p.Status {
		case "succeeded":
			url := firstOutput(p.Output)
			if url == "" {
				return provider.Failure(provider.Unavailable(c.backend, fmt.Errorf("%w: empty output", provider.ErrRemoteJob))), true
			}
			return provider.Success(url), true
		case "failed", "canceled":
			return provider.Failure(provider.Unavailable(c.backend, fmt.Errorf("%w: %s: %v", provider.ErrRemoteJob, p.Status, p.Error))), true
		default:
			return provider.Outcome{}, false
		}
	})
}

// firstOutput accepts the string or list-of-strings output shapes.
func firstOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"audio_out", "audio", "video", "url"} {
			if v := obj[key]; v != "" {
				return v
			}
		}
	}
	return ""
}

// EstimateCost prices the job from its model and duration.
func (c *Client) EstimateCost(job provider.Job, _ provider.Outcome) float64 {
	switch c.backend {
	case provider.BackendReplicateMusic:
		return MusicCost(job.ModelID, c.duration(job))
	case provider.BackendReplicateVideo:
		return VideoCost(job.ModelID, c.duration(job))
	default:
		return ImageCost(job.ModelID)
	}
}

func (c *Client) input(job provider.Job) map[string]any {
	in := map[string]any{"prompt": job.Prompt}
	switch c.backend {
	case provider.BackendReplicateMusic, provider.BackendReplicateVideo:
		in["duration"] = c.duration(job)
	default:
		aspect := job.AspectRatio
		if aspect == "" {
			aspect = c.cfg.AspectRatio
		}
		if aspect == "" {
			aspect = "1:1"
		}
		in["aspect_ratio"] = aspect
		in["num_outputs"] = 1
		in["output_format"] = "jpg"
		in["output_quality"] = 80
	}
	return in
}

func (c *Client) duration(job provider.Job) int {
	if job.DurationSeconds > 0 {
		return job.DurationSeconds
	}
	if c.backend == provider.BackendReplicateVideo {
		if c.cfg.VideoDuration > 0 {
			return c.cfg.VideoDuration
		}
		return 6
	}
	if c.cfg.MusicDuration > 0 {
		return c.cfg.MusicDuration
	}
	return 30
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIToken}
}
