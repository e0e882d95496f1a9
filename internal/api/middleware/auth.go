package middleware

import (
	"context"
	"net/http"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/auth"
)

type contextKeyAuth string

const claimsKey contextKeyAuth = "claims"

// Authenticate validates the Bearer token from the Authorization header
// and stores the claims in the request context.
func Authenticate(manager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, "https://voltgrid.io/problems/unauthorized", "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "https://voltgrid.io/problems/unauthorized", "Missing or malformed authorization header", err, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "https://voltgrid.io/problems/unauthorized", "Invalid token", err, env)
				return
			}

			ctx := contextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role is not in the
// allowed set. It must run after Authenticate.
func RequireRole(env string, allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromRequest(r)
			if claims == nil {
				problem.Write(w, r, http.StatusUnauthorized, "https://voltgrid.io/problems/unauthorized", "Unauthorized", problem.ErrUnauthorized, env)
				return
			}
			if !auth.HasRole(claims.Role, allowed...) {
				problem.Write(w, r, http.StatusForbidden, "https://voltgrid.io/problems/forbidden", "Insufficient permissions", problem.ErrForbidden, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromRequest returns the validated claims for the request, or nil
// when the request was not authenticated.
func ClaimsFromRequest(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
