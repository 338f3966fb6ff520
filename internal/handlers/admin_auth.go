package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fluxior-backend/internal/auth"
	"fluxior-backend/internal/httpx"
	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/transport"
)

const refreshCookiePath = "/api/auth"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Status string `json:"status"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.Val.Struct(req); err != nil {
		log.Warn("auth login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if s.Tokens == nil || s.Users == nil {
		log.Warn("auth login: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := s.Users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		log.Error("auth login: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if err != nil || auth.ComparePassword(user.PasswordHash, req.Password) != nil {
		log.Warn("auth login: invalid credentials", slog.String("email", req.Email))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	if err := s.issueSession(w, user.ID, user.Email); err != nil {
		log.Error("auth login: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	log.Info("auth login: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{Status: "ok", Email: user.Email, Name: user.Name})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.Tokens == nil {
		log.Warn("auth refresh: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
		return
	}

	refreshCookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		log.Warn("auth refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	claims, err := s.Tokens.Parse(refreshCookie.Value)
	if err != nil || claims.Kind != auth.KindRefresh {
		log.Warn("auth refresh: invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	if err := s.issueSession(w, claims.Subject, claims.Email); err != nil {
		log.Error("auth refresh: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	log.Info("auth refresh: ok", slog.String("user_id", claims.Subject))
	transport.WriteJSON(w, http.StatusOK, LoginResponse{Status: "ok", Email: claims.Email})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	clearAuthCookies(w, s.Cfg.CookieSecure)
	log.Info("auth logout: ok")
	transport.WriteJSON(w, http.StatusOK, LoginResponse{Status: "ok"})
}

// Me reports who the dashboard will act as. Callers using the admin key
// have no email and see the house account.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"email":     session.Email,
		"admin_key": session.Key,
	})
}

func (s *Server) issueSession(w http.ResponseWriter, userID, email string) error {
	accessToken, err := s.Tokens.NewAccessToken(userID, email)
	if err != nil {
		return err
	}
	refreshToken, err := s.Tokens.NewRefreshToken(userID, email)
	if err != nil {
		return err
	}
	setAuthCookies(w, accessToken, refreshToken, s.Tokens.AccessTTL, s.Tokens.RefreshTTL, s.Cfg.CookieSecure)
	return nil
}

func setAuthCookies(w http.ResponseWriter, access, refresh string, accessTTL, refreshTTL time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(accessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    refresh,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(refreshTTL.Seconds()),
	})
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	expire := time.Now().Add(-1 * time.Hour)
	for name, path := range map[string]string{auth.AccessCookie: "/", auth.RefreshCookie: refreshCookiePath} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  expire,
			MaxAge:   -1,
		})
	}
}
