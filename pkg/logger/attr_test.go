package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/logger"
)

type tier string

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{"user", logger.UserID(42), "user_id", int64(42)},
		{"tier", logger.Tier(tier("pro")), "tier", "pro"},
		{"dimension", logger.Dimension("monthly_images"), "dimension", "monthly_images"},
		{"kind", logger.Kind("image"), "kind", "image"},
		{"backend", logger.Backend("fal-image"), "backend", "fal-image"},
		{"job", logger.JobID("req-1"), "job_id", "req-1"},
		{"reservation", logger.ReservationID("r-1"), "reservation_id", "r-1"},
		{"cost", logger.CostUSD(0.025), "cost_usd", 0.025},
		{"state", logger.State("QUOTA_CHECKED"), "state", "QUOTA_CHECKED"},
		{"duration", logger.Duration(2 * time.Second), "duration", 2 * time.Second},
		{"component", logger.Component("dispatcher"), "component", "dispatcher"},
		{"request", logger.RequestID("abc"), "request_id", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}
}

func TestEmptyAttrs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.JobID("").Equal(slog.Attr{}))
	assert.True(t, logger.ReservationID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.RequestID("").Equal(slog.Attr{}))
}
