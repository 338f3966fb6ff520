package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"fluxior-backend/internal/transport"
)

// Healthz runs every registered check and reports each outcome.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.Checks))
	for name, check := range s.Checks {
		if err := check(ctx); err != nil {
			s.logWithRequest(r).Warn("healthz: check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	transport.WriteJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}
