package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

// sweep drops reservations whose TTL passed without a commit or release.
func sweep(ctx context.Context, store usage.Store, log *slog.Logger) int {
	start := time.Now()
	n, err := store.PurgeExpired(ctx)
	if err != nil {
		log.ErrorContext(ctx, "purge expired reservations", logger.Error(err))
		return 0
	}
	if n > 0 {
		log.InfoContext(ctx, "purged expired reservations",
			slog.Int("count", n),
			logger.Duration(time.Since(start)))
	}
	return n
}

// newSweeper schedules sweep on a cron schedule. The caller starts and stops it.
func newSweeper(ctx context.Context, schedule string, store usage.Store, log *slog.Logger) (*cron.Cron, error) {
	log = log.With(logger.Component("sweeper"))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { sweep(ctx, store, log) }); err != nil {
		return nil, err
	}
	return c, nil
}
