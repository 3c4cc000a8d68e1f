// Package logger はmindlog共通のJSON構造化ロガーを提供する。
// 呼び出し元のモデルAPIキーやWeChatの資格情報がログに残らないよう、
// 既知の秘密情報キーの値はハンドラー側で伏せ字にする。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted は伏せ字にした値。
const Redacted = "[REDACTED]"

// secretKeys は値を出力しない属性キー（小文字、区切り記号なしで比較）。
var secretKeys = map[string]struct{}{
	"apikey":        {},
	"authorization": {},
	"accesstoken":   {},
	"appsecret":     {},
	"sessionkey":    {},
	"jwtsecret":     {},
	"token":         {},
	"password":      {},
}

// Setup はInfoレベルのJSONロガーを生成して返す。
func Setup(w io.Writer) *slog.Logger {
	return SetupWithLevel(w, slog.LevelInfo)
}

// SetupWithLevel は指定したレベル以上を出力し、秘密情報を伏せるJSONロガーを返す。
func SetupWithLevel(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	}))
}

// redactSecrets はキー名が秘密情報に該当する属性の値を伏せ字に置き換える。
// グループ内の属性にも適用される。
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSecretKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// IsSecretKey はキーが秘密情報を表すかを返す。
// api_key、apiKey、X-Model-Api-Key のような表記揺れを同一視する。
func IsSecretKey(key string) bool {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', ' ':
			return -1
		}
		return r
	}, strings.ToLower(key))

	if _, ok := secretKeys[normalized]; ok {
		return true
	}
	return strings.HasSuffix(normalized, "apikey") || strings.HasSuffix(normalized, "secret")
}

// ParseLevel はLOG_LEVELの値（debug|info|warn|error）をslog.Levelに変換する。
// 未知の値はInfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupDefault はInfoレベルのロガーをグローバルロガーとして設定する。
func SetupDefault(w io.Writer) {
	SetupDefaultWithLevel(w, slog.LevelInfo)
}

// SetupDefaultWithLevel はレベルを指定してグローバルロガーを設定する。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefaultWithLevel(w io.Writer, level slog.Level) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(SetupWithLevel(w, level))
}
