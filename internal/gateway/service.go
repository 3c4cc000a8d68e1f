// Package gateway はAIタスクの入力検証、プロンプト組み立て、モデル呼び出し、
// 構造化抽出をまとめて実行するオーケストレーターを提供する。
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/mindlog/internal/extract"
	"github.com/hitoshi/mindlog/internal/llm"
	"github.com/hitoshi/mindlog/internal/metrics"
	"github.com/hitoshi/mindlog/internal/model"
	"github.com/hitoshi/mindlog/internal/prompt"
)

const (
	// DefaultTimeout は短いタスクのタイムアウト。
	DefaultTimeout = 30 * time.Second
	// DefaultLongTimeout は長文生成タスクのタイムアウト。
	DefaultLongTimeout = 60 * time.Second

	resultSuccess = "success"
)

// Completer はモデル補完を行うインターフェース。
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Config はゲートウェイの設定。
type Config struct {
	Timeout     time.Duration
	LongTimeout time.Duration
	// Location はエントリーの時刻を表示するタイムゾーン。
	Location *time.Location
}

// Service はAIタスクのオーケストレーター。リクエスト間で状態を持たない。
type Service struct {
	completer Completer
	catalog   *prompt.Catalog
	metrics   metrics.Recorder
	logger    *slog.Logger
	config    Config
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(completer Completer, catalog *prompt.Catalog, recorder metrics.Recorder, logger *slog.Logger, config Config) *Service {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.LongTimeout <= 0 {
		config.LongTimeout = DefaultLongTimeout
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		completer: completer,
		catalog:   catalog,
		metrics:   recorder,
		logger:    logger,
		config:    config,
	}
}

// SummaryRequest は日次サマリーの入力。
type SummaryRequest struct {
	APIKey  string
	Entries []Entry
}

// Summary は日次サマリーの結果。
type Summary struct {
	Analysis string `json:"analysis"`
}

// DiaryRequest は日記生成の入力。CustomPromptが空でなければ既定の指示を置き換える。
type DiaryRequest struct {
	APIKey       string
	Entries      []Entry
	CustomPrompt string
}

// Diary は日記生成の結果。
type Diary struct {
	Diary     string `json:"diary"`
	KeyPoints string `json:"keyPoints"`
	Insights  string `json:"insights"`
}

// CounselorRequest はカウンセラー風日記の入力。
type CounselorRequest struct {
	APIKey  string
	Folders []Folder
}

// CounselorDiary はカウンセラー風日記の結果。
type CounselorDiary struct {
	Diary string `json:"diary"`
}

// ReportRequest は長期レポートの入力。Folders、Enrichment、SkillTreeのいずれかが必要。
type ReportRequest struct {
	APIKey     string
	Folders    []Folder
	Enrichment json.RawMessage
	SkillTree  json.RawMessage
}

// ReportMetrics はレポートの数値指標。
type ReportMetrics struct {
	MoodScore   float64  `json:"moodScore"`
	StressScore float64  `json:"stressScore"`
	GrowthScore float64  `json:"growthScore"`
	Keywords    []string `json:"keywords"`
}

// Report は長期レポートの結果。
type Report struct {
	Summary              string        `json:"summary"`
	PsychologicalInsight string        `json:"psychologicalInsight"`
	LifeAdvice           []string      `json:"lifeAdvice"`
	Metrics              ReportMetrics `json:"metrics"`
}

// GoalRequest は目標分解の入力。
type GoalRequest struct {
	APIKey      string
	Title       string
	Description string
}

// GoalSteps は目標分解の結果。
type GoalSteps struct {
	Steps []string `json:"steps"`
}

// SuggestionRequest はカテゴリ別提案の入力。Entriesは任意の参考情報。
type SuggestionRequest struct {
	APIKey   string
	Category string
	Entries  []Entry
}

// Suggestion はカテゴリ別提案の結果。Categoryには実際に使われたカテゴリが入る。
type Suggestion struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// DailySummary は1日分のエントリーから短い分析文を生成する。
func (s *Service) DailySummary(ctx context.Context, req SummaryRequest) (*Summary, error) {
	task := prompt.TaskDailySummary
	if err := s.validate(task, requireKey(req.APIKey), requireEntries(req.Entries)); err != nil {
		return nil, err
	}
	spec, _ := s.catalog.Lookup(task)

	rec, err := s.run(ctx, task, spec, req.APIKey, s.renderEntries(req.Entries))
	if err != nil {
		return nil, err
	}
	return &Summary{Analysis: rec.String("analysis")}, nil
}

// GenerateDiary は断片的なエントリーを1本の日記にまとめる。
func (s *Service) GenerateDiary(ctx context.Context, req DiaryRequest) (*Diary, error) {
	task := prompt.TaskDiary
	if err := s.validate(task, requireKey(req.APIKey), requireEntries(req.Entries)); err != nil {
		return nil, err
	}
	spec := s.catalog.Diary(req.CustomPrompt)

	rec, err := s.run(ctx, task, spec, req.APIKey, s.renderEntries(req.Entries))
	if err != nil {
		return nil, err
	}
	return &Diary{
		Diary:     rec.String("diary"),
		KeyPoints: rec.String("keyPoints"),
		Insights:  rec.String("insights"),
	}, nil
}

// CounselorDiary は複数日のフォルダーから長文の振り返り日記を生成する。
func (s *Service) CounselorDiary(ctx context.Context, req CounselorRequest) (*CounselorDiary, error) {
	task := prompt.TaskCounselorDiary
	if err := s.validate(task, requireKey(req.APIKey), requireFolders(req.Folders)); err != nil {
		return nil, err
	}
	spec, _ := s.catalog.Lookup(task)

	rec, err := s.run(ctx, task, spec, req.APIKey, s.renderFolders(req.Folders))
	if err != nil {
		return nil, err
	}
	return &CounselorDiary{Diary: rec.String("diary")}, nil
}

// Report は長期間の記録から構造化されたレポートを生成する。
func (s *Service) Report(ctx context.Context, req ReportRequest) (*Report, error) {
	task := prompt.TaskReport
	if err := s.validate(task, requireKey(req.APIKey), requireReportInput(req)); err != nil {
		return nil, err
	}
	spec, _ := s.catalog.Lookup(task)

	rec, err := s.run(ctx, task, spec, req.APIKey, s.renderReport(req))
	if err != nil {
		return nil, err
	}
	m := rec.Object("metrics")
	return &Report{
		Summary:              rec.String("summary"),
		PsychologicalInsight: rec.String("psychologicalInsight"),
		LifeAdvice:           rec.Strings("lifeAdvice"),
		Metrics: ReportMetrics{
			MoodScore:   m.Number("moodScore"),
			StressScore: m.Number("stressScore"),
			GrowthScore: m.Number("growthScore"),
			Keywords:    m.Strings("keywords"),
		},
	}, nil
}

// DecomposeGoal は目標を順序付きの実行ステップに分解する。
// 出力は行単位で整形し、ステップが1つも得られなければEmptyResponseErrorを返す。
func (s *Service) DecomposeGoal(ctx context.Context, req GoalRequest) (*GoalSteps, error) {
	task := prompt.TaskGoalSteps
	if err := s.validate(task, requireKey(req.APIKey), requireTitle(req.Title)); err != nil {
		return nil, err
	}
	spec, _ := s.catalog.Lookup(task)

	content := "Goal: " + strings.TrimSpace(req.Title)
	if d := strings.TrimSpace(req.Description); d != "" {
		content += "\nDetails: " + d
	}

	raw, err := s.complete(ctx, task, spec, req.APIKey, content)
	if err != nil {
		return nil, err
	}

	steps := SplitSteps(raw)
	if len(steps) == 0 {
		err := model.NewEmptyResponseError("ai service")
		s.finish(task, err, "")
		return nil, err
	}
	s.finish(task, nil, "")
	return &GoalSteps{Steps: steps}, nil
}

// Suggest はカテゴリ別の小さな行動提案を生成する。
// 未知または空のカテゴリは固定カテゴリからランダムに選ばれる。
func (s *Service) Suggest(ctx context.Context, req SuggestionRequest) (*Suggestion, error) {
	task := prompt.TaskSuggestion
	if err := s.validate(task, requireKey(req.APIKey)); err != nil {
		return nil, err
	}
	category, spec := s.catalog.Suggestion(req.Category)

	content := "Category: " + category
	if hasContent(req.Entries) {
		content += "\n\nRecent journal entries:\n" + s.renderEntries(req.Entries)
	} else {
		content += "\n\nGive me today's suggestion."
	}

	rec, err := s.run(ctx, task, spec, req.APIKey, content)
	if err != nil {
		return nil, err
	}
	return &Suggestion{Content: rec.String("content"), Category: category}, nil
}

var stepMarkerRe = regexp.MustCompile(`^[\d\s\p{P}]+`)

// SplitSteps はモデル出力を行に分け、空行と先頭の番号や記号を取り除く。
// 記号を除いた結果が空になった行は捨てる。
func SplitSteps(raw string) []string {
	var steps []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(stepMarkerRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		steps = append(steps, line)
	}
	return steps
}

// run はモデルを呼び出し、タスクの形で抽出したレコードを返す。抽出は失敗しない。
func (s *Service) run(ctx context.Context, task prompt.Task, spec prompt.Spec, apiKey, content string) (extract.Record, error) {
	raw, err := s.complete(ctx, task, spec, apiKey, content)
	if err != nil {
		return nil, err
	}

	rec, tier := extract.ExtractWithTier(raw, spec.Shape)
	s.metrics.RecordExtractionTier(spec.Shape.Name, string(tier))
	s.finish(task, nil, tier)
	return rec, nil
}

func (s *Service) complete(ctx context.Context, task prompt.Task, spec prompt.Spec, apiKey, content string) (string, error) {
	timeout := s.config.Timeout
	if spec.LongForm {
		timeout = s.config.LongTimeout
	}

	start := time.Now()
	raw, err := s.completer.Complete(ctx, llm.Request{
		APIKey:          apiKey,
		SystemDirective: spec.Directive(),
		UserContent:     content,
		Timeout:         timeout,
	})
	s.metrics.RecordCompletionLatency(string(task), time.Since(start))
	if err != nil {
		s.finish(task, err, "")
		return "", err
	}
	return raw, nil
}

// finish はタスクの結果をメトリクスとログに1件ずつ記録する。
func (s *Service) finish(task prompt.Task, err error, tier extract.Tier) {
	if err == nil {
		s.metrics.RecordGatewayRequest(string(task), resultSuccess)
		attrs := []any{slog.String("task", string(task))}
		if tier != "" {
			attrs = append(attrs, slog.String("tier", string(tier)))
		}
		s.logger.Info("AIタスクが完了しました", attrs...)
		return
	}

	result := "internal"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		result = string(apiErr.Kind)
	}
	s.metrics.RecordGatewayRequest(string(task), result)
	s.logger.Warn("AIタスクが失敗しました",
		slog.String("task", string(task)),
		slog.String("result", result),
		slog.String("error", err.Error()),
	)
}

// validate は検証関数を順に適用し、最初の失敗を記録して返す。
func (s *Service) validate(task prompt.Task, checks ...error) error {
	for _, err := range checks {
		if err != nil {
			s.finish(task, err, "")
			return err
		}
	}
	return nil
}

func requireKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return model.NewValidationError("apiKey is required")
	}
	return nil
}

// requireEntries は本文のあるエントリが1件以上あることを要求する。
// 空白だけのエントリは描画時に捨てられるため数えない。
func requireEntries(entries []Entry) error {
	if !hasContent(entries) {
		return model.NewValidationError("entries must not be empty")
	}
	return nil
}

func hasContent(entries []Entry) bool {
	for _, e := range entries {
		if strings.TrimSpace(e.Content) != "" {
			return true
		}
	}
	return false
}

func requireFolders(folders []Folder) error {
	if !foldersHaveContent(folders) {
		return model.NewValidationError("folders must not be empty")
	}
	return nil
}

func foldersHaveContent(folders []Folder) bool {
	for _, f := range folders {
		if hasContent(f.Entries) {
			return true
		}
	}
	return false
}

func requireTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return model.NewValidationError("title is required")
	}
	return nil
}

func requireReportInput(req ReportRequest) error {
	if !foldersHaveContent(req.Folders) && isEmptyJSON(req.Enrichment) && isEmptyJSON(req.SkillTree) {
		return model.NewValidationError("at least one of folders, enrichment or skillTree is required")
	}
	return nil
}
