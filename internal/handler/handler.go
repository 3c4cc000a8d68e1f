// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/hitoshi/mindlog/internal/middleware"
	"github.com/hitoshi/mindlog/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
// レポート生成では数か月分の記録が送られるため大きめにとる。
const maxBodyBytes = 2 << 20

// decodeJSON はリクエストボディをJSONとしてdstに読み込む。
// 形式不正や上限超過はValidationErrorを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return model.NewValidationError("request body must be at most %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return model.NewValidationError("request body is required")
		default:
			return model.NewValidationError("invalid request body")
		}
	}
	return nil
}

// requireUserID は認証済みユーザーIDを返す。
// 取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// queryInt64 はクエリパラメータを整数として読む。未指定は0。
func queryInt64(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, model.NewValidationError("%s must be an integer", key)
	}
	return v, nil
}
