package middleware

import (
	"context"
	"net/http"
	"strings"

	"fluxior-backend/internal/auth"
	"fluxior-backend/internal/transport"
)

type sessionKey struct{}

// Session identifies the dashboard caller. An empty Email is the house account.
type Session struct {
	Email string
	Key   bool
}

// SessionAuth accepts the X-Admin-Key header or an access token from the
// session cookie or an Authorization bearer header.
func SessionAuth(adminKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			if adminKey != "" && r.Header.Get("X-Admin-Key") == adminKey {
				next.ServeHTTP(w, withSession(r, Session{Key: true}))
				return
			}

			if manager != nil {
				if token := accessToken(r); token != "" {
					claims, err := manager.Parse(token)
					if err == nil && claims.Kind == auth.KindAccess {
						next.ServeHTTP(w, withSession(r, Session{Email: claims.Email}))
						return
					}
				}
			}

			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		})
	}
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// SessionEmailFromContext returns the signed-in email, or "" for the house account.
func SessionEmailFromContext(ctx context.Context) string {
	s, _ := SessionFromContext(ctx)
	return s.Email
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func withSession(r *http.Request, s Session) *http.Request {
	return r.WithContext(WithSession(r.Context(), s))
}

func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.AccessCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
