package fal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/provider/fal"
)

func newServer(t *testing.T, pendingChecks int32, final string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var checks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /fal-ai/flux/schnell", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key secret", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a red fox", body["prompt"])
		assert.Equal(t, "square", body["image_size"])

		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})
	})
	mux.HandleFunc("POST /fal-ai/luma-dream-machine", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "vid-1"})
	})
	mux.HandleFunc("GET /fal-ai/{model...}", func(w http.ResponseWriter, r *http.Request) {
		model := r.PathValue("model")
		switch {
		case len(model) > 7 && model[len(model)-7:] == "/status":
			if checks.Add(1) <= pendingChecks {
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "IN_PROGRESS"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": final})
		default:
			if r.URL.Path == "/fal-ai/luma-dream-machine/requests/vid-1" {
				_, _ = w.Write([]byte(`{"video":{"url":"https://cdn.fal/v.mp4"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"images":[{"url":"https://cdn.fal/i.png"}]}`))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &checks
}

func cfg(url string) fal.Config {
	return fal.Config{
		APIKey:         "secret",
		QueueURL:       url,
		RequestTimeout: time.Second,
		PollInterval:   5 * time.Millisecond,
		ImageSize:      "square",
		VideoDuration:  5,
	}
}

func TestClient_ImageLifecycle(t *testing.T) {
	t.Parallel()

	srv, checks := newServer(t, 2, "COMPLETED")
	c := fal.NewImageClient(cfg(srv.URL))
	ctx := context.Background()

	job := provider.NewJob(provider.KindImage, "  a red fox ", fal.ModelFluxSchnell, time.Now())
	h, err := c.Submit(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "req-1", h.ID)
	assert.Equal(t, provider.BackendFalImage, h.Backend)

	out := c.Poll(ctx, h, time.Now().Add(time.Second))
	require.True(t, out.Succeeded(), "outcome: %+v", out)
	assert.Equal(t, "https://cdn.fal/i.png", out.AssetURL)
	assert.Equal(t, int32(3), checks.Load())

	assert.InDelta(t, 0.25*0.003, c.EstimateCost(job, out), 1e-9)
}

func TestClient_VideoLifecycle(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, "COMPLETED")
	c := fal.NewVideoClient(cfg(srv.URL))
	ctx := context.Background()

	job := provider.NewJob(provider.KindVideo, "waves", fal.ModelLumaDream, time.Now())
	h, err := c.Submit(ctx, job)
	require.NoError(t, err)

	out := c.Poll(ctx, h, time.Now().Add(time.Second))
	require.True(t, out.Succeeded())
	assert.Equal(t, "https://cdn.fal/v.mp4", out.AssetURL)
	assert.InDelta(t, 0.5, c.EstimateCost(job, out), 1e-9)
}

func TestClient_RemoteFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 0, "FAILED")
	c := fal.NewImageClient(cfg(srv.URL))
	ctx := context.Background()

	h, err := c.Submit(ctx, provider.NewJob(provider.KindImage, "a red fox", fal.ModelFluxSchnell, time.Now()))
	require.NoError(t, err)

	out := c.Poll(ctx, h, time.Now().Add(time.Second))
	assert.Equal(t, provider.StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, provider.ErrRemoteJob)
}

func TestClient_PollTimeout(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, 1<<30, "COMPLETED")
	c := fal.NewImageClient(cfg(srv.URL))
	ctx := context.Background()

	h, err := c.Submit(ctx, provider.NewJob(provider.KindImage, "a red fox", fal.ModelFluxSchnell, time.Now()))
	require.NoError(t, err)

	out := c.Poll(ctx, h, time.Now().Add(40*time.Millisecond))
	assert.Equal(t, provider.StatusTimeout, out.Status)
	assert.Equal(t, provider.Timeout, out.Err.Kind)
}

func TestClient_SubmitErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   provider.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, provider.SubmitError},
		{"validation", http.StatusUnprocessableEntity, provider.SubmitError},
		{"server error", http.StatusInternalServerError, provider.ProviderUnavailable},
		{"overloaded", http.StatusServiceUnavailable, provider.ProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"detail":"nope"}`, tt.status)
			}))
			defer srv.Close()

			c := fal.NewImageClient(cfg(srv.URL))
			_, err := c.Submit(context.Background(), provider.NewJob(provider.KindImage, "x", fal.ModelFluxDev, time.Now()))

			var pe *provider.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, provider.BackendFalImage, pe.Backend)
		})
	}

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()

		c := fal.NewImageClient(cfg("http://127.0.0.1:1"))
		_, err := c.Submit(context.Background(), provider.NewJob(provider.KindImage, "x", fal.ModelFluxDev, time.Now()))
		assert.ErrorIs(t, err, provider.ErrUnavailable)
	})

	t.Run("missing model", func(t *testing.T) {
		t.Parallel()

		c := fal.NewImageClient(cfg("http://127.0.0.1:1"))
		_, err := c.Submit(context.Background(), provider.NewJob(provider.KindImage, "x", "", time.Now()))
		assert.ErrorIs(t, err, provider.ErrSubmit)
	})
}

func TestCosts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"schnell square_hd", fal.ImageCost(fal.ModelFluxSchnell, "square_hd"), 0.003},
		{"dev landscape 16:9", fal.ImageCost(fal.ModelFluxDev, "landscape_16_9"), 0.0125},
		{"pro portrait 4:3", fal.ImageCost(fal.ModelFluxPro, "portrait_4_3"), 0.0375},
		{"pro 1.1 square", fal.ImageCost(fal.ModelFluxProV11, "square"), 0.01375},
		{"unknown model and size", fal.ImageCost("fal-ai/new", "huge"), 0.025},
		{"luma per video", fal.VideoCost(fal.ModelLumaDream, 9), 0.5},
		{"hunyuan per video", fal.VideoCost(fal.ModelHunyuanVideo, 9), 0.4},
		{"kling per second", fal.VideoCost(fal.ModelKlingVideo, 10), 0.95},
		{"kling negative duration", fal.VideoCost(fal.ModelKlingVideo, -3), 0},
		{"unknown video", fal.VideoCost("fal-ai/other", 5), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.got, 1e-9)
			assert.GreaterOrEqual(t, tt.got, 0.0)
		})
	}
}

func TestClient_Models(t *testing.T) {
	t.Parallel()

	img := fal.NewImageClient(fal.Config{})
	vid := fal.NewVideoClient(fal.Config{})

	assert.Len(t, img.Models(), 4)
	assert.Len(t, vid.Models(), 3)
	for _, m := range vid.Models() {
		assert.Equal(t, provider.BackendFalVideo, m.Backend)
	}
}
