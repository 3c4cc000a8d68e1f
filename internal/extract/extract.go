// Package extract はLLMが返す自由形式テキストから、決められた形のレコードを取り出す。
//
// 生成モデルは形式を保証しないため、Extractは失敗しない全域関数として実装する。
// 取り出しは次の順で段階的に行う:
//
//  1. テキスト全体をJSONオブジェクトとしてパース
//  2. 最初の "{" から最後の "}" までの部分文字列をJSONとしてパース
//  3. 見出しの正規表現による分解（Sectionsを持つ形のみ）
//  4. 生テキストのフォールバック
//
// どの段階を経ても、戻り値は形の全フィールドを宣言どおりの型で持つ。
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind はフィールドの型を表す。
type Kind int

const (
	// String は文字列フィールド。既定値は ""。
	String Kind = iota
	// StringList は文字列配列フィールド。既定値は空配列。
	StringList
	// Number は数値フィールド。既定値は 0。
	Number
	// Object は入れ子のオブジェクト。既定値は子フィールドの既定値を持つオブジェクト。
	Object
)

// Field は形の1フィールドを表す。
type Field struct {
	Name   string
	Kind   Kind
	Fields []Field // Kind が Object の場合のみ
}

// Section は見出し分解で使う正規表現と代入先フィールドの組。
// Patternの1番目のキャプチャグループがフィールド値になる。
type Section struct {
	Field   string
	Pattern *regexp.Regexp
}

// Shape は取り出し対象の形を表す。
type Shape struct {
	Name     string
	Fields   []Field
	Sections []Section

	// RawField は段階1〜3で値が得られなかった場合に生テキストを入れる文字列フィールド。
	RawField string
	// RawLimit が正の場合、RawFieldに入れる生テキストをこのルーン数で切り詰める。
	RawLimit int
	// RawOnlyWhenUnparsed がtrueの場合、JSONオブジェクトが一切得られなかった時だけ
	// RawFieldのフォールバックを行う。
	RawOnlyWhenUnparsed bool
}

// Tier はレコードがどの段階で得られたかを表す。
type Tier string

const (
	TierJSON      Tier = "json"
	TierSubstring Tier = "substring"
	TierSections  Tier = "sections"
	TierRaw       Tier = "raw"
)

// Record は取り出し結果。値は string, []string, float64, Record のいずれか。
type Record map[string]any

// String は文字列フィールドの値を返す。
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Strings は文字列配列フィールドの値を返す。
func (r Record) Strings(name string) []string {
	s, _ := r[name].([]string)
	return s
}

// Number は数値フィールドの値を返す。
func (r Record) Number(name string) float64 {
	n, _ := r[name].(float64)
	return n
}

// Object は入れ子オブジェクトの値を返す。
func (r Record) Object(name string) Record {
	o, _ := r[name].(Record)
	return o
}

// Extract は生テキストから形に沿ったレコードを取り出す。失敗しない。
func Extract(raw string, shape Shape) Record {
	rec, _ := ExtractWithTier(raw, shape)
	return rec
}

// ExtractWithTier はExtractと同じ処理を行い、値を与えた段階もあわせて返す。
func ExtractWithTier(raw string, shape Shape) (Record, Tier) {
	rec := Defaults(shape)
	provided := make(map[string]bool, len(shape.Fields))
	tier := TierRaw
	parsed := false

	// 1. 全体パース
	if obj, ok := parseObject(strings.TrimSpace(raw)); ok {
		parsed = true
		if fill(rec, obj, shape.Fields, provided) > 0 {
			tier = TierJSON
		}
	}

	// 2. 部分文字列パース（最初の "{" から最後の "}" まで）
	if tier != TierJSON {
		if obj, ok := parseObject(greedySpan(raw)); ok {
			parsed = true
			if fill(rec, obj, shape.Fields, provided) > 0 {
				tier = TierSubstring
			}
		}
	}

	// 3. 見出し分解
	if !parsed && len(shape.Sections) > 0 {
		if applySections(rec, raw, shape.Sections, provided) > 0 {
			tier = TierSections
		}
	}

	// 4. 生テキスト
	// JSONで明示的に空文字が返されたフィールドは上書きしない（再抽出しても同じ結果になる）
	if !provided[shape.RawField] {
		applyRaw(rec, raw, shape, parsed)
	}

	return rec, tier
}

// Defaults は形の全フィールドを既定値で埋めた新しいレコードを返す。
func Defaults(shape Shape) Record {
	return defaultsFor(shape.Fields)
}

func defaultsFor(fields []Field) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		rec[f.Name] = defaultValue(f)
	}
	return rec
}

func defaultValue(f Field) any {
	switch f.Kind {
	case StringList:
		return []string{}
	case Number:
		return float64(0)
	case Object:
		return defaultsFor(f.Fields)
	default:
		return ""
	}
}

// parseObject はtextがJSONオブジェクトとして妥当な場合にその結果を返す。
func parseObject(text string) (gjson.Result, bool) {
	if text == "" || !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(text)
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	return obj, true
}

// greedySpan は最初の "{" から最後の "}" までを返す。括弧の対応は見ない。
func greedySpan(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// fill はobjに存在するフィールドをrecへ写し、写したフィールド数を返す。
// providedがnilでなければ写したフィールド名を記録する。
func fill(rec Record, obj gjson.Result, fields []Field, provided map[string]bool) int {
	values := obj.Map()
	matched := 0
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if val, ok := coerce(v, f); ok {
			rec[f.Name] = val
			matched++
			if provided != nil {
				provided[f.Name] = true
			}
		}
	}
	return matched
}

// coerce はJSON値をフィールドの型に合わせて変換する。
// 変換できない値（nullや型の合わないオブジェクト）はfalseを返し、既定値を残す。
func coerce(v gjson.Result, f Field) (any, bool) {
	switch f.Kind {
	case String:
		switch {
		case v.Type == gjson.String:
			return v.Str, true
		case v.Type == gjson.Number, v.Type == gjson.True, v.Type == gjson.False:
			return v.Raw, true
		case v.IsArray():
			return strings.Join(elementStrings(v), "\n"), true
		case v.IsObject():
			return v.Raw, true
		}
	case StringList:
		switch {
		case v.IsArray():
			return elementStrings(v), true
		case v.Type == gjson.String:
			return splitLines(v.Str), true
		case v.Type == gjson.Number, v.Type == gjson.True, v.Type == gjson.False:
			return []string{v.Raw}, true
		}
	case Number:
		switch v.Type {
		case gjson.Number:
			return finite(v.Float())
		case gjson.String:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
				return finite(n)
			}
		}
	case Object:
		if v.IsObject() {
			nested := defaultsFor(f.Fields)
			fill(nested, v, f.Fields, nil)
			return nested, true
		}
	}
	return nil, false
}

// finite はJSONに書き出せる有限値だけを受け付ける。NaNと±Infは既定値の0を残す。
func finite(n float64) (any, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, false
	}
	return n, true
}

// elementStrings は配列要素を文字列化し、空要素を除いて返す。
func elementStrings(arr gjson.Result) []string {
	out := []string{}
	for _, e := range arr.Array() {
		s := e.Raw
		if e.Type == gjson.String {
			s = e.Str
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func applySections(rec Record, raw string, sections []Section, provided map[string]bool) int {
	matched := 0
	for _, sec := range sections {
		m := sec.Pattern.FindStringSubmatch(raw)
		if len(m) < 2 {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			rec[sec.Field] = v
			provided[sec.Field] = true
			matched++
		}
	}
	return matched
}

func applyRaw(rec Record, raw string, shape Shape, parsed bool) {
	if shape.RawField == "" || (shape.RawOnlyWhenUnparsed && parsed) {
		return
	}
	if rec.String(shape.RawField) != "" {
		return
	}
	rec[shape.RawField] = truncate(strings.TrimSpace(raw), shape.RawLimit)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
