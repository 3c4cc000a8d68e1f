package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mindlog/internal/model"
)

// ResponseBody はAPIレスポンスの統一フォーマット。
// Codeは成功時0、失敗時はHTTPステータスコードと同じ値。
type ResponseBody struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess は成功レスポンスを書き込む。
func WriteSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeBody(w, statusCode, ResponseBody{Code: 0, Data: data})
}

// WriteErrorStatus は指定ステータスのエラーレスポンスを書き込む。
func WriteErrorStatus(w http.ResponseWriter, statusCode int, message string) {
	writeBody(w, statusCode, ResponseBody{Code: statusCode, Message: message})
}

// WriteError はエラーを分類に応じたHTTPステータスで書き込む。
// APIError以外のエラーは詳細をログのみに記録し、一般的なメッセージを返す。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorStatus(w, apiErr.HTTPStatus(), apiErr.Message)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorStatus(w, http.StatusInternalServerError, "internal server error")
}

// writeBody はボディをエンコードしてからヘッダーを書き込む。
// エンコードできない場合は空の成功応答を返さず、500の統一レスポンスに置き換える。
func writeBody(w http.ResponseWriter, statusCode int, body ResponseBody) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
		statusCode = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(ResponseBody{Code: statusCode, Message: "internal server error"})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed to write response", slog.String("error", err.Error()))
	}
}
