package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware rejects requests without a valid Bearer token and injects the
// authenticated user ID into the request context.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	logger := zap.L().With(zap.String("component", "auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			userID, err := svc.Verify(token)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
