package usage

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/gengate/pkg/logger"
)

// DefaultReservationTTL outlives two maximal polling phases.
const DefaultReservationTTL = 15 * time.Minute

// Options is shared by every Store implementation.
type Options struct {
	Now            func() time.Time
	ReservationTTL time.Duration
	Logger         *slog.Logger
}

// Option configures a Store.
type Option func(*Options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

// WithReservationTTL sets how long an uncommitted reservation holds quota.
func WithReservationTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.ReservationTTL = ttl
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Now:            func() time.Time { return time.Now().UTC() },
		ReservationTTL: DefaultReservationTTL,
		Logger:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
