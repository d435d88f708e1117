package generation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/gengate/pkg/httpserver"
	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/requestid"
)

// Mountable is a sub-router.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures the service router. Nil fields are not mounted.
type RouterOptions struct {
	API     Mountable
	Metrics http.Handler

	// Probes back /readyz; /healthz is always mounted.
	Probes       map[string]httpserver.Probe
	ProbeTimeout time.Duration

	Logger *slog.Logger
}

// Router builds the root handler.
//
//	r := generation.Router(generation.RouterOptions{
//	    API:     generation.NewAPI(dispatcher, log),
//	    Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
//	    Probes:  map[string]httpserver.Probe{"store": storeProbe},
//	})
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, recoverer(log))

	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(log, timeout, opts.Probes))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.API != nil {
		r.Mount("/v1", opts.API.Handle())
	}
	return r
}

func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					log.ErrorContext(r.Context(), "handler panic",
						logger.Component("router"),
						slog.Any("panic", v),
						slog.String("path", r.URL.Path))
					fail(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
