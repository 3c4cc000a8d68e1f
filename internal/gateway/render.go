package gateway

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Entry はクライアントから送られる1件の記録。
// Timestampはエポックミリ秒（エポック秒も可）で、0は未指定を表す。
type Entry struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Mood      string `json:"mood,omitempty"`
}

// Folder は1日分の記録のまとまり。
type Folder struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}

// secondsThreshold 未満のタイムスタンプはエポック秒として扱う。
const secondsThreshold = 1_000_000_000_000

// SortEntries はエントリーをタイムスタンプの昇順に並べたコピーを返す。
// 同じタイムスタンプ同士は入力順を保つ。
func SortEntries(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

func (s *Service) renderEntries(entries []Entry) string {
	var b strings.Builder
	for _, e := range SortEntries(entries) {
		content := strings.TrimSpace(e.Content)
		if content == "" {
			continue
		}
		b.WriteString("- ")
		if e.Timestamp > 0 {
			b.WriteString("[")
			b.WriteString(s.entryTime(e.Timestamp).Format("2006-01-02 15:04"))
			b.WriteString("] ")
		}
		b.WriteString(content)
		if mood := strings.TrimSpace(e.Mood); mood != "" {
			b.WriteString(" (mood: ")
			b.WriteString(mood)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) renderFolders(folders []Folder) string {
	var b strings.Builder
	for i, f := range folders {
		if i > 0 {
			b.WriteString("\n\n")
		}
		date := strings.TrimSpace(f.Date)
		if date == "" {
			date = "(undated)"
		}
		b.WriteString("## ")
		b.WriteString(date)
		b.WriteString("\n")
		b.WriteString(s.renderEntries(f.Entries))
	}
	return b.String()
}

func (s *Service) renderReport(req ReportRequest) string {
	var parts []string
	if foldersHaveContent(req.Folders) {
		parts = append(parts, "# Journal\n\n"+s.renderFolders(req.Folders))
	}
	if !isEmptyJSON(req.Enrichment) {
		parts = append(parts, "# Profile\n\n"+prettyJSON(req.Enrichment))
	}
	if !isEmptyJSON(req.SkillTree) {
		parts = append(parts, "# Skill tree\n\n"+prettyJSON(req.SkillTree))
	}
	return strings.Join(parts, "\n\n")
}

func (s *Service) entryTime(ts int64) time.Time {
	var t time.Time
	if ts < secondsThreshold {
		t = time.Unix(ts, 0)
	} else {
		t = time.UnixMilli(ts)
	}
	return t.In(s.config.Location)
}

// isEmptyJSON は値が無い、null、空オブジェクト、空配列のいずれかかを返す。
func isEmptyJSON(raw json.RawMessage) bool {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return true
	}
	r := gjson.ParseBytes(raw)
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return true
	case r.IsObject():
		return len(r.Map()) == 0
	case r.IsArray():
		return len(r.Array()) == 0
	case r.Type == gjson.String:
		return strings.TrimSpace(r.Str) == ""
	}
	return false
}

func prettyJSON(raw json.RawMessage) string {
	if !gjson.ValidBytes(raw) {
		return strings.TrimSpace(string(raw))
	}
	return strings.TrimSpace(string(pretty.Pretty(raw)))
}
