// Command gengate serves quota-enforced generation requests over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/gengate/modules/generation"
	"github.com/dmitrymomot/gengate/pkg/assets"
	"github.com/dmitrymomot/gengate/pkg/config"
	"github.com/dmitrymomot/gengate/pkg/httpserver"
	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/requestid"
	gen "github.com/dmitrymomot/gengate/svc/generation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("gengate stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.App.Env, cfg.App.Service),
		logger.WithLevelName(cfg.App.LogLevel),
		logger.WithFormat(logger.Format(cfg.App.LogFormat)),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	catalog, err := loadCatalog(ctx, cfg.Plans.File)
	if err != nil {
		return err
	}

	be, err := openStore(ctx, cfg, catalog, log.With(logger.Component("store")))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := be.close(closeCtx); err != nil {
			log.Error("close store", logger.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	probes := map[string]httpserver.Probe{"store": be.probe}
	opts := []gen.Option{
		gen.WithLogger(log),
		gen.WithMetrics(gen.NewMetrics(cfg.MetricsNamespace, reg)),
	}
	if cfg.S3.Enabled() {
		mirror, err := assets.NewMirror(ctx, cfg.S3, assets.WithLogger(log))
		if err != nil {
			return err
		}
		opts = append(opts, gen.WithMirror(mirror))
		probes["assets"] = mirror.Healthcheck
	}

	dispatcher, err := gen.New(be.store, catalog, providerClients(cfg, log), opts...)
	if err != nil {
		return err
	}

	sweeper, err := newSweeper(ctx, cfg.Sweep.Schedule, be.store, log)
	if err != nil {
		return err
	}

	router := generation.Router(generation.RouterOptions{
		API:     generation.NewAPI(dispatcher, log),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Probes:  probes,
		Logger:  log,
	})
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, router)
	})
	g.Go(func() error {
		sweeper.Start()
		<-ctx.Done()
		<-sweeper.Stop().Done()
		return nil
	})

	log.Info("gengate started",
		slog.String("store", cfg.Store.Backend),
		slog.Bool("mirror", cfg.S3.Enabled()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadCatalog(ctx context.Context, path string) (*plans.Catalog, error) {
	src := plans.DefaultSource()
	if path != "" {
		var err error
		if src, err = plans.NewYAMLFileSource(path); err != nil {
			return nil, err
		}
	}
	return plans.NewCatalog(ctx, src)
}
