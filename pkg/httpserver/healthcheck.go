package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// Probe checks one dependency.
type Probe func(context.Context) error

// HealthCheckHandler serves liveness (no probes: "ALIVE") and readiness
// ("READY" when every probe succeeds, 503 "NOT_READY" otherwise).
// Probes run concurrently and share a 5 second deadline.
func HealthCheckHandler(log *slog.Logger, probes ...Probe) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(probes) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for _, p := range probes {
			g.Go(func() error { return p(gctx) })
		}
		if err := g.Wait(); err != nil {
			log.ErrorContext(r.Context(), "readiness check failed",
				logger.Component("healthcheck"),
				logger.Error(err),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
