package token

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithEvaluator returns a copy of ctx carrying the authenticated evaluator ID.
func WithEvaluator(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// EvaluatorFrom returns the evaluator ID placed on ctx by Middleware.
func EvaluatorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// JWKSHandler serves the public signing key set.
func (s *Service) JWKSHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(s.JWKS())
}

// Middleware rejects requests without a valid bearer token and stores the
// evaluator ID on the request context.
func (s *Service) Middleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if len(auth) < len("bearer ") || !strings.EqualFold(auth[:len("bearer ")], "bearer ") {
				unauthorized(w, "missing_token")
				return
			}
			claims, err := s.Verify(strings.TrimSpace(auth[len("bearer "):]))
			if err != nil {
				logger.Debugw("rejected bearer token", "path", r.URL.Path, "err", err)
				unauthorized(w, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithEvaluator(r.Context(), claims.Subject)))
		})
	}
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
