package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/colefleming/vouch/internal/models"
	pkghttp "github.com/colefleming/vouch/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// SessionResolver resolves a bearer token to its user and session,
// enforcing lazy expiry. Implemented by services.SessionService.
type SessionResolver interface {
	Resolve(ctx context.Context, token, ip, userAgent string) (*models.User, *models.Session, error)
}

// SessionMiddleware resolves the bearer token and injects the user and
// session into the request context. Absent and expired tokens are treated
// uniformly as not authenticated.
func SessionMiddleware(resolver SessionResolver, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			ip := pkghttp.ExtractClientIP(r, ipConfig)
			user, session, err := resolver.Resolve(r.Context(), parts[1], ip, r.UserAgent())
			if err != nil {
				pkghttp.WriteUnauthorized(w, models.ErrInvalidSession.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireFull rejects half-authenticated sessions. Must run after
// SessionMiddleware.
func RequireFull(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r)
		if session == nil {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return
		}

		if session.Level != models.AuthLevelFull {
			pkghttp.WriteForbidden(w, models.ErrInsufficientAuthLevel.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin enforces the admin role. Must run after SessionMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r)
		if user == nil {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return
		}

		if !user.IsAdmin() {
			pkghttp.WriteForbidden(w, "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext extracts the resolved user from the request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext extracts the resolved session from the request context
func GetSessionFromContext(r *http.Request) *models.Session {
	session, ok := r.Context().Value(sessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

// ContextWithIdentity injects a user and session, for handler tests.
func ContextWithIdentity(ctx context.Context, user *models.User, session *models.Session) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, sessionContextKey, session)
}
