// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind はエラーの分類を表す。
// ハンドラー層はこの分類だけを見てHTTPステータスを決める。
type ErrorKind string

const (
	// KindValidation は呼び出し元の入力不備。外部APIには到達しない。
	KindValidation ErrorKind = "validation"
	// KindConfiguration は必須のシークレット・キーが未設定であることを示す。
	KindConfiguration ErrorKind = "configuration"
	// KindTimeout は外部呼び出しが期限を超過したことを示す。
	KindTimeout ErrorKind = "timeout"
	// KindUpstream は通信は成功したが相手側が失敗または不正な応答を返したことを示す。
	KindUpstream ErrorKind = "upstream"
	// KindEmptyResponse は通信は成功したが利用可能な内容が空だったことを示す。
	KindEmptyResponse ErrorKind = "empty_response"
	// KindUnauthorized は認証情報が無い・無効であることを示す。
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNotFound は対象リソースが存在しないことを示す。
	KindNotFound ErrorKind = "not_found"
)

// APIError は統一エラーフォーマットを表す。
// Messageは上流プロバイダーのメッセージをそのまま保持する場合がある。
type APIError struct {
	Kind    ErrorKind // エラー分類
	Message string    // 呼び出し元に返すメッセージ
	Err     error     // 原因（ログ用、レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatus はエラー分類に対応するHTTPステータスコードを返す。
// タイムアウトは504ではなく502として扱い、メッセージで区別する。
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindTimeout, KindUpstream, KindEmptyResponse:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsKind はerrがAPIErrorであり、指定の分類に一致するかを返す。
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(format string, args ...any) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConfigurationError は設定不足エラーを生成する。
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Kind:    KindConfiguration,
		Message: message,
	}
}

// NewTimeoutError は外部呼び出しのタイムアウトエラーを生成する。
func NewTimeoutError(service string, err error) *APIError {
	return &APIError{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("%s request timed out", service),
		Err:     err,
	}
}

// NewUpstreamError は上流サービスの失敗を表すエラーを生成する。
// messageには上流が返したメッセージを翻訳せずに渡す。
func NewUpstreamError(message string, err error) *APIError {
	return &APIError{
		Kind:    KindUpstream,
		Message: message,
		Err:     err,
	}
}

// NewEmptyResponseError は上流が空の応答を返した場合のエラーを生成する。
func NewEmptyResponseError(service string) *APIError {
	return &APIError{
		Kind:    KindEmptyResponse,
		Message: fmt.Sprintf("%s returned an empty response", service),
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Kind:    KindUnauthorized,
		Message: "authentication required",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Message: "user not found",
	}
}
