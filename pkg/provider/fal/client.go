// Package fal is a provider.Client for the fal.ai queue API. One client
// serves either images or videos.
package fal

import (
	"context"
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

// WithHTTPClient replaces the HTTP client.
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

// NewImageClient returns the fal image backend.
func NewImageClient(cfg Config, opts ...Option) *Client {
	return newClient(provider.BackendFalImage, cfg, opts...)
}

// NewVideoClient returns the fal video backend.
func NewVideoClient(cfg Config, opts ...Option) *Client {
	return newClient(provider.BackendFalVideo, cfg, opts...)
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

func (c *Client) Models() []provider.Model {
	if c.backend == provider.BackendFalVideo {
		return videoModels()
	}
	return imageModels()
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type resultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Video *struct {
		URL string `json:"url"`
	} `json:"video"`
}

// Submit enqueues the job and returns the request id with its status URLs.
func (c *Client) Submit(ctx context.Context, job provider.Job) (provider.Handle, error) {
	if job.ModelID == "" {
		return provider.Handle{}, provider.SubmitFailed(c.backend, errors.New("model id is required"))
	}

	var resp submitResponse
	if perr := provider.DoJSON(ctx, c.hc, c.backend, provider.Request{
		Method:  http.MethodPost,
		URL:     c.modelURL(job.ModelID),
		Headers: c.headers(),
		Body:    c.input(job),
		Expect:  []int{http.StatusOK, http.StatusAccepted},
	}, &resp); perr != nil {
		return provider.Handle{}, perr
	}

	if resp.RequestID == "" {
		return provider.Handle{}, provider.Unavailable(c.backend, errors.New("queue returned no request id"))
	}

	h := provider.Handle{
		Backend:     c.backend,
		ID:          resp.RequestID,
		ModelID:     job.ModelID,
		StatusURL:   resp.StatusURL,
		ResponseURL: resp.ResponseURL,
	}
	if h.StatusURL == "" {
		h.StatusURL = c.modelURL(job.ModelID) + "/requests/" + resp.RequestID + "/status"
	}
	if h.ResponseURL == "" {
		h.ResponseURL = c.modelURL(job.ModelID) + "/requests/" + resp.RequestID
	}

	c.log.DebugContext(ctx, "fal job queued",
		slog.String("backend", string(c.backend)),
		slog.String("job_id", h.ID),
		slog.String("model", job.ModelID))

	return h, nil
}

// Poll checks the queue status until the request completes, then fetches the result.
func (c *Client) Poll(ctx context.Context, h provider.Handle, deadline time.Time) provider.Outcome {
	if h.Done != nil {
		return *h.Done
	}
	return provider.PollUntil(ctx, c.backend, deadline, c.cfg.PollInterval, func(ctx context.Context) (provider.Outcome, bool) {
		var st statusResponse
		if perr := provider.DoJSON(ctx, c.hc, c.backend, provider.Request{
			Method:  http.MethodGet,
			URL:     h.StatusURL,
			Headers: c.headers(),
			Expect:  []int{http.StatusOK, http.StatusAccepted},
		}, &st); perr != nil {
			return c.checkFailed(ctx, h, perr)
		}

		switch strings.ToUpper(st.Status) {
		case "COMPLETED":
			if st.Error != "" {
				return provider.Failure(provider.Unavailable(c.backend, fmt.Errorf("%w: %s", provider.ErrRemoteJob, st.Error))), true
			}
			return c.fetchResult(ctx, h)
		case "FAILED", "ERROR", "CANCELLED":
			return provider.Failure(provider.Unavailable(c.backend, fmt.Errorf("%w: %s %s", provider.ErrRemoteJob, st.Status, st.Error))), true
		default:
			return provider.Outcome{}, false
		}
	})
}

func (c *Client) fetchResult(ctx context.Context, h provider.Handle) (provider.Outcome, bool) {
	var res resultResponse
	if perr := provider.DoJSON(ctx, c.hc, c.backend, provider.Request{
		Method:  http.MethodGet,
		URL:     h.ResponseURL,
		Headers: c.headers(),
	}, &res); perr != nil {
		return c.checkFailed(ctx, h, perr)
	}

	switch {
	case res.Video != nil && res.Video.URL != "":
		return provider.Success(res.Video.URL), true
	case len(res.Images) > 0 && res.Images[0].URL != "":
		return provider.Success(res.Images[0].URL), true
	}
	return provider.Failure(provider.Unavailable(c.backend, fmt.Errorf("%w: result has no asset", provider.ErrRemoteJob))), true
}

// checkFailed keeps polling through transient errors and stops on rejected requests.
func (c *Client) checkFailed(ctx context.Context, h provider.Handle, perr *provider.Error) (provider.Outcome, bool) {
	if perr.Kind == provider.SubmitError {
		return provider.Failure(perr), true
	}
	c.log.DebugContext(ctx, "fal status check failed, retrying",
		slog.String("job_id", h.ID),
		slog.String("error", perr.Error()))
	return provider.Outcome{}, false
}

// EstimateCost prices the job from its model, image size and duration.
func (c *Client) EstimateCost(job provider.Job, _ provider.Outcome) float64 {
	if c.backend == provider.BackendFalVideo {
		return VideoCost(job.ModelID, c.duration(job))
	}
	return ImageCost(job.ModelID, c.imageSize(job))
}

func (c *Client) input(job provider.Job) map[string]any {
	in := map[string]any{"prompt": job.Prompt}
	if c.backend == provider.BackendFalVideo {
		in["duration"] = c.duration(job)
		return in
	}
	in["image_size"] = c.imageSize(job)
	in["num_images"] = 1
	return in
}

func (c *Client) imageSize(job provider.Job) string {
	if job.ImageSize != "" {
		return job.ImageSize
	}
	if c.cfg.ImageSize != "" {
		return c.cfg.ImageSize
	}
	return "square_hd"
}

func (c *Client) duration(job provider.Job) int {
	if job.DurationSeconds > 0 {
		return job.DurationSeconds
	}
	if c.cfg.VideoDuration > 0 {
		return c.cfg.VideoDuration
	}
	return 5
}

func (c *Client) modelURL(model string) string {
	return strings.TrimRight(c.cfg.QueueURL, "/") + "/" + strings.TrimLeft(model, "/")
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Key " + c.cfg.APIKey}
}
