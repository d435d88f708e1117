package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/gengate/pkg/httpserver"
	"github.com/dmitrymomot/gengate/pkg/usage"
	"github.com/dmitrymomot/gengate/pkg/usage/mongostore"
	"github.com/dmitrymomot/gengate/pkg/usage/pgstore"
	"github.com/dmitrymomot/gengate/pkg/usage/redisstore"
)

// backend is an opened usage store with its readiness probe and cleanup.
type backend struct {
	store usage.Store
	probe httpserver.Probe
	close func(context.Context) error
}

func openStore(ctx context.Context, cfg Config, limits usage.Limits, log *slog.Logger) (*backend, error) {
	opts := []usage.Option{
		usage.WithReservationTTL(cfg.Store.ReservationTTL),
		usage.WithLogger(log),
	}
	noop := func(context.Context) error { return nil }

	switch cfg.Store.Backend {
	case "", "memory":
		return &backend{store: usage.NewMemoryStore(limits, opts...), probe: noop, close: noop}, nil

	case "redis":
		client, err := redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: redisstore.New(client, limits, cfg.Redis, opts...),
			probe: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: func(context.Context) error { return client.Close() },
		}, nil

	case "postgres":
		pool, err := pgstore.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			store: pgstore.New(pool, limits, opts...),
			probe: pool.Ping,
			close: func(context.Context) error { pool.Close(); return nil },
		}, nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: mongostore.New(client, limits, cfg.Mongo, opts...),
			probe: func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
