package generation

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/provider"
)

type options struct {
	log         *slog.Logger
	metrics     *Metrics
	mirror      Mirror
	now         func() time.Time
	routes      map[provider.Kind][]provider.Backend
	deadlines   map[provider.Kind]time.Duration
	models      ModelSelector
	tokenBudget int
	commitWait  time.Duration
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMirror copies successful image, video and music assets to durable
// storage. Text results are never mirrored.
func WithMirror(m Mirror) Option {
	return func(o *options) { o.mirror = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRoute replaces the backend chain of one kind.
func WithRoute(kind provider.Kind, chain ...provider.Backend) Option {
	return func(o *options) { o.routes[kind] = chain }
}

// WithDeadline sets the per-attempt deadline of one kind.
func WithDeadline(kind provider.Kind, d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deadlines[kind] = d
		}
	}
}

func WithModelSelector(s ModelSelector) Option {
	return func(o *options) {
		if s != nil {
			o.models = s
		}
	}
}

// WithLongContextBudget sets the default token reservation of long-context
// text requests.
func WithLongContextBudget(tokens int) Option {
	return func(o *options) {
		if tokens > 0 {
			o.tokenBudget = tokens
		}
	}
}

// WithCommitTimeout bounds the store calls made after the provider resolved.
func WithCommitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.commitWait = d
		}
	}
}

func defaultOptions() *options {
	return &options{
		log:         logger.Discard(),
		now:         time.Now,
		routes:      DefaultRoutes(),
		deadlines:   DefaultDeadlines(),
		models:      DefaultModel,
		tokenBudget: DefaultLongContextBudget,
		commitWait:  10 * time.Second,
	}
}
