package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const actorIDKey contextKey = "actorID"

// JWTAuthMiddleware validates Bearer tokens and injects the actor id
// into context. Verification only: token issuance lives with the
// authentication collaborator.
func JWTAuthMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token format")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc)
			if err != nil || !token.Valid {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "token has no subject")
				return
			}

			ctx := context.WithValue(r.Context(), actorIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorIDFromContext extracts the authenticated actor id from context.
func ActorIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(actorIDKey).(string)
	return v
}
