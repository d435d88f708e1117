package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/gengate/pkg/logger"
)

// Probe reports whether one dependency can serve traffic.
type Probe func(ctx context.Context) error

// Liveness always answers 200 while the process can serve HTTP.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "alive"})
	}
}

// Readiness runs every probe with timeout and answers 503 if any fails.
// The body names each probe and its error.
func Readiness(log *slog.Logger, timeout time.Duration, probes map[string]Probe) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		checks := make(map[string]string, len(probes))
		code := http.StatusOK
		for name, probe := range probes {
			if err := probe(ctx); err != nil {
				log.WarnContext(ctx, "readiness probe failed",
					logger.Component(name),
					logger.Error(err))
				checks[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		status := "ready"
		if code != http.StatusOK {
			status = "not_ready"
		}
		writeStatus(w, code, map[string]any{"status": status, "checks": checks})
	}
}

func writeStatus(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
