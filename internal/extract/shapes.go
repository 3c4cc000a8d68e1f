package extract

import "regexp"

const (
	diaryHeadings    = `diary|日记|日記`
	keyPointHeadings = `key[ \t]*points?|要点|重点`
	insightHeadings  = `insights?|感悟|启示`
)

// heading は行頭の見出しにマッチする正規表現を組み立てる。
// "Diary:", "## Diary", "**Key Points**:", "【感悟】" などの表記を許容する。
// 見出しの後にはコロンか改行が必要。
func heading(names string) string {
	return `(?:^|\n)[ \t]*[#*【\[]*[ \t]*(?:` + names + `)[ \t]*[*】\]]*[ \t]*(?:[:：][ \t]*[*】\]]*|\n)`
}

var (
	diarySectionRe     = regexp.MustCompile(`(?is)` + heading(diaryHeadings) + `(.*?)(?:` + heading(keyPointHeadings+`|`+insightHeadings) + `|\z)`)
	keyPointsSectionRe = regexp.MustCompile(`(?is)` + heading(keyPointHeadings) + `(.*?)(?:` + heading(insightHeadings) + `|\z)`)
	insightsSectionRe  = regexp.MustCompile(`(?is)` + heading(insightHeadings) + `(.*)`)
)

// DiaryShape は日記生成タスクの形。
// JSONが得られない場合は見出し分解を行い、それでも日記本文が無ければ生テキストを本文とする。
var DiaryShape = Shape{
	Name: "diary",
	Fields: []Field{
		{Name: "diary", Kind: String},
		{Name: "keyPoints", Kind: String},
		{Name: "insights", Kind: String},
	},
	Sections: []Section{
		{Field: "diary", Pattern: diarySectionRe},
		{Field: "keyPoints", Pattern: keyPointsSectionRe},
		{Field: "insights", Pattern: insightsSectionRe},
	},
	RawField: "diary",
}

// ReportShape は長期レポートタスクの形。
// JSONが一切得られない場合だけ、生テキストの先頭をsummaryに入れた最小レコードを作る。
var ReportShape = Shape{
	Name: "report",
	Fields: []Field{
		{Name: "summary", Kind: String},
		{Name: "psychologicalInsight", Kind: String},
		{Name: "lifeAdvice", Kind: StringList},
		{Name: "metrics", Kind: Object, Fields: []Field{
			{Name: "moodScore", Kind: Number},
			{Name: "stressScore", Kind: Number},
			{Name: "growthScore", Kind: Number},
			{Name: "keywords", Kind: StringList},
		}},
	},
	RawField:            "summary",
	RawLimit:            500,
	RawOnlyWhenUnparsed: true,
}

// SummaryShape は日次サマリータスクの形。
var SummaryShape = Shape{
	Name:     "daily_summary",
	Fields:   []Field{{Name: "analysis", Kind: String}},
	RawField: "analysis",
}

// CounselorShape はカウンセラー風日記タスクの形。
var CounselorShape = Shape{
	Name:     "counselor_diary",
	Fields:   []Field{{Name: "diary", Kind: String}},
	RawField: "diary",
}

// SuggestionShape はカテゴリ別提案タスクの形。
var SuggestionShape = Shape{
	Name:     "suggestion",
	Fields:   []Field{{Name: "content", Kind: String}},
	RawField: "content",
}
