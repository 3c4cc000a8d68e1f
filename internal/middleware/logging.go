package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/mindlog/internal/metrics"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー。
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLen を超える、または表示できない文字を含むIDは受け取らずに採番し直す。
const maxRequestIDLen = 64

// statusRecorder はhttp.ResponseWriterをラップし、最初に書かれたステータスを保持する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestInfo はハンドラー側で判明した情報をアクセスログまで運ぶ。
// 認証ミドルウェアはルーターのグループ内で動くため、ここで受け取れるのはポインタ経由のみ。
type requestInfo struct {
	id     string
	userID string
}

var requestInfoKey = contextKey("request_info")

// setRequestUserID は認証済みユーザーIDをアクセスログ用に記録する。
func setRequestUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// RequestIDFromContext はロギングミドルウェアが付与したリクエストIDを返す。
func RequestIDFromContext(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// NewLoggingMiddleware はリクエストごとに1行のアクセスログを出力するミドルウェアを返す。
// クライアントがX-Request-Idを送った場合はそれを引き継ぎ、無ければ採番してレスポンスにも付与する。
// ログにはrequest_id、method、route（chiのルートパターン）、path、status、duration_ms、
// 認証済みの場合はuser_idを含め、ステータスコードはrecorderにも記録する。
func NewLoggingMiddleware(logger *slog.Logger, recorder metrics.Recorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{id: requestID(r.Header.Get(RequestIDHeader))}
			w.Header().Set(RequestIDHeader, info.id)
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			recorder.RecordHTTPStatus(rec.statusCode)

			attrs := []any{
				slog.String("request_id", info.id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if route := routePattern(r); route != "" {
				attrs = append(attrs, slog.String("route", route))
			}
			if info.userID != "" {
				attrs = append(attrs, slog.String("user_id", info.userID))
			} else if userID, err := UserIDFromContext(r.Context()); err == nil && userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			logger.Log(r.Context(), levelForStatus(rec.statusCode), "http_request", attrs...)
		})
	}
}

func levelForStatus(code int) slog.Level {
	switch {
	case code >= 500:
		return slog.LevelError
	case code >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// routePattern はchiがマッチしたルートパターン（例: /api/notes/{id}）を返す。
// ルーター外で使われた場合は空文字。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// requestID はクライアント指定のIDが妥当ならそれを使い、そうでなければUUIDを採番する。
func requestID(given string) string {
	if given == "" || len(given) > maxRequestIDLen {
		return uuid.NewString()
	}
	for i := 0; i < len(given); i++ {
		if c := given[i]; c < 0x21 || c > 0x7e {
			return uuid.NewString()
		}
	}
	return given
}
