package main

import (
	"log/slog"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/provider/fal"
	"github.com/dmitrymomot/gengate/pkg/provider/openai"
	"github.com/dmitrymomot/gengate/pkg/provider/replicate"
)

// providerClients builds a breaker-guarded client for every backend with
// credentials. Backends without credentials are left out of their chains.
func providerClients(cfg Config, log *slog.Logger) []provider.Client {
	var raw []provider.Client
	if cfg.Fal.APIKey != "" {
		raw = append(raw,
			fal.NewImageClient(cfg.Fal, fal.WithLogger(log)),
			fal.NewVideoClient(cfg.Fal, fal.WithLogger(log)),
		)
	}
	if cfg.Replicate.APIToken != "" {
		raw = append(raw,
			replicate.NewImageClient(cfg.Replicate, replicate.WithLogger(log)),
			replicate.NewVideoClient(cfg.Replicate, replicate.WithLogger(log)),
			replicate.NewMusicClient(cfg.Replicate, replicate.WithLogger(log)),
		)
	}
	if cfg.OpenAI.APIKey != "" {
		raw = append(raw, openai.NewClient(cfg.OpenAI, openai.WithLogger(log)))
	}

	clients := make([]provider.Client, 0, len(raw))
	for _, c := range raw {
		cb := provider.NewCircuitBreaker(cfg.Breaker.Failures, cfg.Breaker.Successes, cfg.Breaker.Recovery)
		clients = append(clients, provider.Guard(c, cb))
		log.Info("provider configured", logger.Backend(c.Backend()))
	}
	if len(clients) == 0 {
		log.Warn("no provider credentials configured; every generation will fail")
	}
	return clients
}
