package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AuthMiddleware 校验调用方携带的预共享 Bearer 密钥。
// 凭证缺失或不匹配时直接 401，不进入任何文件处理；
// 服务端自己没配密钥属于配置错误，按 500 报告。
func AuthMiddleware(relaySecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if relaySecret == "" {
				writeJSONError(w, "服务未配置调用密钥 (AUTH.RELAY_SECRET)", http.StatusInternalServerError)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, "请求未包含授权凭证", http.StatusUnauthorized)
				return
			}

			headerParts := strings.SplitN(authHeader, " ", 2)
			if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
				writeJSONError(w, "授权头部格式无效，应为 Bearer {secret}", http.StatusUnauthorized)
				return
			}

			// 常数时间比较，避免通过响应时间猜测密钥
			if subtle.ConstantTimeCompare([]byte(headerParts[1]), []byte(relaySecret)) != 1 {
				writeJSONError(w, "授权凭证无效", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError 发送 JSON 格式的错误响应（中间件内的简版实现）。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
