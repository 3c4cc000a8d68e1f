package middleware

import "net/http"

// corsAllowedHeaders はブラウザから送られるリクエストヘッダー。
// X-Model-Api-KeyはAIエンドポイントでbodyのapiKeyの代わりに使える。
const corsAllowedHeaders = "Content-Type, Authorization, X-Model-Api-Key, " + RequestIDHeader

// corsExposedHeaders はクライアントのスクリプトから読めるレスポンスヘッダー。
const corsExposedHeaders = RequestIDHeader + ", Retry-After"

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// 認証はAuthorizationヘッダーで行うため、credentialsは許可しない。
// allowedOriginが空の場合はCORSヘッダーを付与しない（ミニプログラムからの呼び出しのみ）。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
