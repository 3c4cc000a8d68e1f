package security

import (
	"strings"
	"testing"
)

// TestSanitize_StripsTags はタグが除去され本文のみが残ることを検証する。
func TestSanitize_StripsTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "今日は晴れ",
			want:  "今日は晴れ",
		},
		{
			name:  "段落タグが除去される",
			input: "<p>テスト段落</p>",
			want:  "テスト段落",
		},
		{
			name:  "リンクは本文のみ残る",
			input: `<a href="https://example.com">リンク</a>`,
			want:  "リンク",
		},
		{
			name:  "前後の空白が除去される",
			input: "  朝ごはん  \n",
			want:  "朝ごはん",
		},
		{
			name:  "アンパサンドは元の文字に戻る",
			input: "コーヒー & 紅茶",
			want:  "コーヒー & 紅茶",
		},
		{
			name:  "空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_RemovesScript はscriptタグとイベント属性が残らないことを検証する。
func TestSanitize_RemovesScript(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`日記<script>alert("xss")</script><img src=x onerror="alert(1)">`)
	for _, forbidden := range []string{"<script", "onerror", "<img"} {
		if strings.Contains(got, forbidden) {
			t.Errorf("Sanitize result contains %q: %q", forbidden, got)
		}
	}
	if !strings.HasPrefix(got, "日記") {
		t.Errorf("Sanitize result lost text: %q", got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := "<b>気分</b>は上々"

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(input)
	if first != second {
		t.Errorf("Sanitize is not deterministic: %q vs %q", first, second)
	}
}
