// Package auth 提供管理接口的静态 API Key 认证。
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	loggerpkg "DustMite-Agent/pkg/logger"
)

// APIKeyMiddleware 校验 Authorization: Bearer <key> 请求头。
// key 为空时认证被禁用, 所有请求直接放行。
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	key = strings.TrimSpace(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				loggerpkg.Audit().Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", http.StatusUnauthorized,
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
