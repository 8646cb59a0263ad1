package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zhouzirui/z-admin/assistant/internal/config"
	"github.com/zhouzirui/z-admin/assistant/pkg/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// APIKeyHeader is the header checked against the configured API key.
const APIKeyHeader = "X-API-Key"

// UserIDFromContext returns the user authenticated by Auth, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Auth enforces the configured API key and bearer token. Checks with an empty
// secret are skipped.
func Auth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIKey != "" {
				got := r.Header.Get(APIKeyHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.APIKey)) != 1 {
					utils.RespondError(w, http.StatusUnauthorized, "invalid api key")
					return
				}
			}

			if cfg.JWTSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := parseBearer(r.Header.Get("Authorization"), cfg.JWTSecret)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(header, secret string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}

	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", jwt.ErrTokenInvalidClaims
}
