package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating bearer tokens. The
// engine never decodes tokens itself; identity resolution is an upstream
// concern surfaced here as resolved claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	SubjectID string
	Role      string
}

type contextKeySubjectID struct{}
type contextKeyRole struct{}

// Exported context keys for handlers and tests.
var (
	ContextKeySubjectID = contextKeySubjectID{}
	ContextKeyRole      = contextKeyRole{}
)

// GetSubjectID retrieves the authenticated subject from the context.
func GetSubjectID(ctx context.Context) string {
	subjectID, ok := ctx.Value(ContextKeySubjectID).(string)
	if !ok {
		return ""
	}
	return subjectID
}

// GetRole retrieves the authenticated subject's role from the context.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// RequireAuth enforces a valid bearer token and stores the resolved claims
// in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeySubjectID, claims.SubjectID)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"invalid or expired token"}`))
}
