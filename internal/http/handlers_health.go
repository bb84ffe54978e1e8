package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pinger reports whether a backing dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const healthPingTimeout = 2 * time.Second

// HealthHandlers provides the liveness probe backed by dependency pings.
type HealthHandlers struct {
	DB     Pinger
	Cache  Pinger // optional; the service runs without its cache
	Logger *slog.Logger
}

// Health reports liveness. An unreachable database turns the probe unhealthy.
// The cache is advisory: every consumer degrades without it, so its state is
// reported in the body without affecting the status code. Pings run
// concurrently under the shared ping timeout.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	var dbErr, cacheErr error
	g, gctx := errgroup.WithContext(ctx)
	if h.DB != nil {
		g.Go(func() error {
			dbErr = h.DB.PingContext(gctx)
			return nil
		})
	}
	if h.Cache != nil {
		g.Go(func() error {
			cacheErr = h.Cache.PingContext(gctx)
			return nil
		})
	}
	_ = g.Wait() // pings report through the captured errors

	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if dbErr != nil {
		if h.Logger != nil {
			h.Logger.WarnContext(r.Context(), "health ping failed", "error", dbErr)
		}
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	if cacheErr != nil {
		if h.Logger != nil {
			h.Logger.WarnContext(r.Context(), "cache ping failed", "error", cacheErr)
		}
		body["cache"] = "unavailable"
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, body)
}
