package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"fluxior-backend/internal/auth"
	"fluxior-backend/internal/config"
	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/validation"
)

// Server serves the account endpoints: sign-in, token refresh and user admin.
type Server struct {
	Cfg    *config.Config
	Users  UserStore
	Val    *validation.Validator
	Log    *slog.Logger
	Tokens *auth.Manager
	// Checks are run by Healthz, keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
