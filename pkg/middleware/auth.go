package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/httputil"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Claims is the authenticated subject placed in the request context.
type Claims struct {
	Subject string
	Email   string
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator func(ctx context.Context, token string) (*Claims, error)

// BearerToken returns the credential of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Auth rejects requests without a valid bearer access token and stores the
// claims in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, r, "missing bearer token")
				return
			}

			claims, err := validate(r.Context(), token)
			if err != nil {
				writeAuthError(w, r, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithUserID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// UserIDFromContext returns the authenticated subject, or "".
func UserIDFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	httputil.WriteError(w, r, apperrors.Unauthorized(message), nil)
}
