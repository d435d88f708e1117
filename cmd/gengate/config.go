package main

import (
	"time"

	"github.com/dmitrymomot/gengate/pkg/assets"
	"github.com/dmitrymomot/gengate/pkg/httpserver"
	"github.com/dmitrymomot/gengate/pkg/provider/fal"
	"github.com/dmitrymomot/gengate/pkg/provider/openai"
	"github.com/dmitrymomot/gengate/pkg/provider/replicate"
	"github.com/dmitrymomot/gengate/pkg/usage/mongostore"
	"github.com/dmitrymomot/gengate/pkg/usage/pgstore"
	"github.com/dmitrymomot/gengate/pkg/usage/redisstore"
)

// Config is the process configuration read from the environment.
type Config struct {
	App struct {
		Env       string `env:"APP_ENV" envDefault:"development"`
		Service   string `env:"APP_SERVICE" envDefault:"gengate"`
		LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
		LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	}

	HTTP httpserver.Config

	Store struct {
		Backend        string        `env:"STORE_BACKEND" envDefault:"memory"` // memory, redis, postgres, mongo
		ReservationTTL time.Duration `env:"STORE_RESERVATION_TTL" envDefault:"15m"`
	}

	Redis    redisstore.Config
	Postgres pgstore.Config
	Mongo    mongostore.Config

	Fal       fal.Config
	Replicate replicate.Config
	OpenAI    openai.Config
	S3        assets.Config

	Breaker struct {
		Failures  int           `env:"BREAKER_FAILURES" envDefault:"5"`
		Successes int           `env:"BREAKER_SUCCESSES" envDefault:"1"`
		Recovery  time.Duration `env:"BREAKER_RECOVERY" envDefault:"30s"`
	}

	Plans struct {
		File string `env:"PLANS_FILE"` // YAML plan table; built-in table when empty
	}

	Sweep struct {
		Schedule string `env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	}

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"gengate"`
}
