package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_WritesJSONWithStandardFields(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf).Warn("gateway call finished",
		slog.String("task", "diary"),
		slog.String("tier", "json"),
		slog.Int("duration_ms", 25),
	)

	entry := decodeEntry(t, &buf)
	want := map[string]any{
		"msg":         "gateway call finished",
		"level":       "WARN",
		"task":        "diary",
		"tier":        "json",
		"duration_ms": float64(25),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

// TestSetup_RedactsSecrets は秘密情報キーの値が出力されないことを検証する。
func TestSetup_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf).Info("outbound call",
		slog.String("apiKey", "sk-live-123"),
		slog.String("access_token", "wx-token"),
		slog.String("app_secret", "wx-secret"),
		slog.Group("request", slog.String("X-Model-Api-Key", "sk-header")),
		slog.String("user_id", "u-1"),
	)

	out := buf.String()
	for _, secret := range []string{"sk-live-123", "wx-token", "wx-secret", "sk-header"} {
		if strings.Contains(out, secret) {
			t.Errorf("ログに秘密情報 %q が含まれている: %s", secret, out)
		}
	}

	entry := decodeEntry(t, &buf)
	if entry["apiKey"] != Redacted {
		t.Errorf("apiKey = %v, want %s", entry["apiKey"], Redacted)
	}
	if entry["user_id"] != "u-1" {
		t.Errorf("user_id = %v, want u-1", entry["user_id"])
	}
}

func TestIsSecretKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"apiKey", true},
		{"api_key", true},
		{"X-Model-Api-Key", true},
		{"Authorization", true},
		{"session_key", true},
		{"wechat_app_secret", true},
		{"token", true},
		{"user_id", false},
		{"task", false},
		{"token_refresh", false},
		{"expires_at", false},
	}

	for _, tt := range tests {
		if got := IsSecretKey(tt.key); got != tt.want {
			t.Errorf("IsSecretKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "global test" || entry["test_key"] != "test_val" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSetupWithLevel_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWithLevel(&buf, slog.LevelWarn)

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered at warn level, got %s", buf.String())
	}

	l.Error("shown")
	if buf.Len() == 0 {
		t.Error("error log should be written at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
