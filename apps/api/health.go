package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// readinessCheck returns nil when the dependency is usable.
type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// readyzHandler runs every check with a shared deadline and reports 503 on the first failure.
func readyzHandler(logger *zap.Logger, timeout time.Duration, checks ...readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				logger.Warn("readiness check failed", zap.String("check", c.name), zap.Error(err))
				status[c.name] = "unavailable"
				healthy = false
				continue
			}
			status[c.name] = "ok"
		}

		if !healthy {
			respond.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": status})
			return
		}
		respond.JSON(w, http.StatusOK, map[string]any{"status": status})
	}
}
