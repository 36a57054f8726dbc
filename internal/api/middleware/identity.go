package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/auth"
)

type contextKeyAuth string

const (
	identityKey     contextKeyAuth = "identity"
	refreshTokenKey contextKeyAuth = "refreshToken"
)

// TokenVerifier resolves a raw token string to an identity, nil when the
// token is missing or invalid.
type TokenVerifier interface {
	VerifyAccess(token string) *auth.Identity
	VerifyRefresh(token string) *auth.Identity
}

// Identity extracts the caller's identity from the access cookie or a
// Bearer header and attaches it to the context. It never rejects; routes
// that need authentication wrap themselves in RequireAuth.
func Identity(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token != "" {
				if identity := verifier.VerifyAccess(token); identity != nil {
					ctx := context.WithValue(r.Context(), identityKey, identity)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RefreshIdentity resolves the refresh token for the token refresh
// endpoint, attaching both the identity and the presented token so the
// handler can check set membership and rotate.
func RefreshIdentity(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := refreshToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity := verifier.VerifyRefresh(token)
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, refreshTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests carrying no valid identity.
func RequireAuth(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFrom(r) == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", problem.ErrUnauthorized, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests unless the identity carries the admin role.
func RequireAdmin(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFrom(r)
			if identity == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", problem.ErrUnauthorized, env)
				return
			}
			if !auth.IsAdmin(identity.Role) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Admin role required", problem.ErrForbidden, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFrom returns the caller's identity, nil for anonymous requests.
func IdentityFrom(r *http.Request) *auth.Identity {
	if r == nil {
		return nil
	}
	if identity, ok := r.Context().Value(identityKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

// RefreshTokenFrom returns the raw refresh token the request presented.
func RefreshTokenFrom(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token, ok := r.Context().Value(refreshTokenKey).(string); ok {
		return token
	}
	return ""
}

func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.AccessCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	if token, err := auth.TokenFromHeader(r.Header.Get("Authorization"), auth.SchemeBearer); err == nil {
		return token
	}
	return ""
}

func refreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.RefreshCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	if token, err := auth.TokenFromHeader(r.Header.Get("Authorization"), auth.SchemeRefresh); err == nil {
		return token
	}
	return ""
}
