package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/bookshelf/internal/httputil"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey ContextKey = "user_id"
	UserContextKey   ContextKey = "user"
)

// LoginPath is where unauthenticated browsers are sent
const LoginPath = "/"

// UserLoader fetches the user a session belongs to
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Middleware handles authentication for protected routes
type Middleware struct {
	tokenService  TokenService
	users         UserLoader
	secureCookies bool
}

func NewMiddleware(tokenService TokenService, users UserLoader, secureCookies bool) *Middleware {
	return &Middleware{
		tokenService:  tokenService,
		users:         users,
		secureCookies: secureCookies,
	}
}

// RequireAuth validates the session cookie and puts the user ID in the
// request context. Any failure sends the browser back to the login page.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := GetSessionTokenFromCookie(r)
		if err != nil {
			httputil.Redirect(w, r, LoginPath, "")
			return
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			logging.GetLoggerFromContext(r.Context()).Debug("rejected session token", "error", err)
			ClearSessionCookie(w, m.secureCookies)
			httputil.Redirect(w, r, LoginPath, "")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoadUser re-fetches the authenticated user. It must run after RequireAuth.
func (m *Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		if !ok {
			httputil.Redirect(w, r, LoginPath, "")
			return
		}

		u, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				ClearSessionCookie(w, m.secureCookies)
				httputil.Redirect(w, r, LoginPath, "User not found")
				return
			}
			logging.GetLoggerFromContext(r.Context()).Error("failed to load session user", "user_id", userID, "error", err)
			httputil.ServerError(w)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// UserFromContext returns the user loaded by LoadUser
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok && u != nil
}
