package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	AccessTokenHeader  = "x-access-token"
	RefreshTokenHeader = "x-refresh-token"
	AccessTokenQuery   = "accessToken"
	RefreshTokenQuery  = "refreshToken"
)

// Authenticator is the part of *goSessionAuth.Engine the guard needs.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*goSessionAuth.Identity, error)
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by [RequireAuth].
func IdentityFromContext(ctx context.Context) (goSessionAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(goSessionAuth.Identity)
	return id, ok
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id goSessionAuth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// RequireAuth rejects requests without a valid access token and a live
// session. onError may be nil.
func RequireAuth(auth Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = writeUnauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				onError(w, r, goSessionAuth.ErrUnauthorized)
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				onError(w, r, goSessionAuth.ErrTokenMissing)
				return
			}

			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

// AccessToken extracts the access token: cookie, then Bearer header, then
// x-access-token, then the query string.
func AccessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if token := strings.TrimSpace(r.Header.Get(AccessTokenHeader)); token != "" {
		return token, true
	}
	if token := r.URL.Query().Get(AccessTokenQuery); token != "" {
		return token, true
	}
	return "", false
}

// RefreshToken extracts the refresh token: cookie, then Bearer header, then
// x-refresh-token, then the query string.
func RefreshToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if token := strings.TrimSpace(r.Header.Get(RefreshTokenHeader)); token != "" {
		return token, true
	}
	if token := r.URL.Query().Get(RefreshTokenQuery); token != "" {
		return token, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeUnauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": goSessionAuth.ErrUnauthorized.Message,
	})
}
