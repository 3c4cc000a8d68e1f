// Package prompt はAIタスクごとのシステム指示と期待する出力形を保持する。
// カタログは起動時に1回だけ構築し、以後は読み取り専用として扱う。
package prompt

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/hitoshi/mindlog/internal/extract"
)

// Task は論理タスク名。
type Task string

const (
	TaskDailySummary   Task = "daily_summary"
	TaskDiary          Task = "diary"
	TaskCounselorDiary Task = "counselor_diary"
	TaskReport         Task = "report"
	TaskGoalSteps      Task = "goal_steps"
	TaskSuggestion     Task = "suggestion"
)

// contentPolicySuffix はコンテンツポリシーの付加指示。
const contentPolicySuffix = "Content policy: do not produce sexual, violent, hateful, self-harm encouraging, " +
	"political or illegal content, and never include personal data that was not in the input. " +
	"If the input itself contains such material, respond supportively without repeating it."

// Spec は1タスク分のプロンプト定義。
type Spec struct {
	SystemDirective     string
	AppendContentPolicy bool
	Shape               extract.Shape
	// SchemaHint が空でなければ、指示の末尾に出力JSONの形として付加する。
	SchemaHint string
	// LongForm は長文生成タスクであり、長いタイムアウトを使うことを示す。
	LongForm bool
}

// Directive は付加指示を含めた最終的なシステム指示を返す。
func (s Spec) Directive() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.SystemDirective))
	if s.SchemaHint != "" {
		b.WriteString("\n\nRespond with a single JSON object and nothing else, in exactly this shape:\n")
		b.WriteString(s.SchemaHint)
	}
	if s.AppendContentPolicy {
		b.WriteString("\n\n")
		b.WriteString(contentPolicySuffix)
	}
	return b.String()
}

// Catalog はタスク名からプロンプト定義を引く読み取り専用の表。
type Catalog struct {
	tasks      map[Task]Spec
	categories map[string]Spec
	keys       []string
	intn       func(n int) int
}

// Option はCatalogの生成オプション。
type Option func(*Catalog)

// WithRandom はカテゴリ未指定時の選択に使う乱数関数を差し替える。
func WithRandom(intn func(n int) int) Option {
	return func(c *Catalog) {
		c.intn = intn
	}
}

// NewCatalog は組み込みの定義からCatalogを生成する。
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		tasks:      builtinTasks(),
		categories: builtinCategories(),
		intn:       rand.Intn,
	}
	for key := range c.categories {
		c.keys = append(c.keys, key)
	}
	sort.Strings(c.keys)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup はタスクの定義を返す。カテゴリ別提案タスクにはSuggestionを使う。
func (c *Catalog) Lookup(task Task) (Spec, bool) {
	s, ok := c.tasks[task]
	return s, ok
}

// Diary は日記生成タスクの定義を返す。
// customが空でなければその指示をそのまま使い、JSON形とポリシーの付加指示だけを足す。
func (c *Catalog) Diary(custom string) Spec {
	s := c.tasks[TaskDiary]
	if custom = strings.TrimSpace(custom); custom != "" {
		s.SystemDirective = custom
	}
	return s
}

// Suggestion はカテゴリ別提案タスクの定義と、実際に使われたカテゴリを返す。
// 未知または空のカテゴリは固定カテゴリから一様ランダムに選ぶ（エラーにはしない）。
func (c *Catalog) Suggestion(category string) (string, Spec) {
	key := strings.ToLower(strings.TrimSpace(category))
	if s, ok := c.categories[key]; ok {
		return key, s
	}
	key = c.keys[c.intn(len(c.keys))]
	return key, c.categories[key]
}

// Categories は固定カテゴリの一覧を昇順で返す。
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// IsCategory はkeyが固定カテゴリに含まれるかを返す。
func (c *Catalog) IsCategory(key string) bool {
	_, ok := c.categories[key]
	return ok
}
