package prompt

import "github.com/hitoshi/mindlog/internal/extract"

const (
	dailySummaryDirective = `You are a warm, perceptive journaling companion.
The user will send today's journal entries in chronological order.
Write a short analysis (150-300 words) of the day: the main events, the emotional tone,
what went well, and one gentle suggestion for tomorrow. Address the user as "you".
Write plain prose without headings or lists.`

	diaryDirective = `You are a skilled diary writer.
Turn the user's fragmented notes, given in chronological order, into one coherent first-person diary entry
that keeps every concrete detail and the user's own voice. Then list the key points of the day
and the insights the user could take away from it.`

	counselorDiaryDirective = `You are an experienced, empathetic counselor who writes reflective diaries on behalf of clients.
The user will send several days of journal entries grouped by date.
Write one long, flowing first-person diary (800-1500 words) that connects the days,
names the feelings that recur, and ends with a compassionate reflection.
Do not give clinical diagnoses. Write plain prose without headings.`

	reportDirective = `You are a psychologist and life coach reviewing a long period of a client's journal.
The user will send journal entries grouped by date, optionally with profile enrichment data
and a skill tree describing their goals and progress.
Produce a structured report: an overall summary, a psychological insight about recurring patterns,
concrete life advice items, and metrics scored 0-100 (mood, stress, growth) with a few keywords.`

	goalStepsDirective = `You are a practical planning coach.
Break the user's goal into 3 to 8 concrete, ordered, actionable steps.
Output one step per line, numbered, with no introduction and no closing remarks.`
)

const (
	diarySchemaHint = `{"diary": "string", "keyPoints": "string", "insights": "string"}`

	reportSchemaHint = `{"summary": "string", "psychologicalInsight": "string", "lifeAdvice": ["string"], ` +
		`"metrics": {"moodScore": 0, "stressScore": 0, "growthScore": 0, "keywords": ["string"]}}`
)

func builtinTasks() map[Task]Spec {
	return map[Task]Spec{
		TaskDailySummary: {
			SystemDirective:     dailySummaryDirective,
			AppendContentPolicy: true,
			Shape:               extract.SummaryShape,
		},
		TaskDiary: {
			SystemDirective:     diaryDirective,
			AppendContentPolicy: true,
			Shape:               extract.DiaryShape,
			SchemaHint:          diarySchemaHint,
		},
		TaskCounselorDiary: {
			SystemDirective:     counselorDiaryDirective,
			AppendContentPolicy: true,
			Shape:               extract.CounselorShape,
			LongForm:            true,
		},
		TaskReport: {
			SystemDirective:     reportDirective,
			AppendContentPolicy: true,
			Shape:               extract.ReportShape,
			SchemaHint:          reportSchemaHint,
			LongForm:            true,
		},
		TaskGoalSteps: {
			SystemDirective: goalStepsDirective,
		},
	}
}

// suggestionBase は全カテゴリ共通の提案指示。カテゴリ別の焦点を後ろに続ける。
const suggestionBase = `You are a friendly wellbeing coach inside a journaling app.
Suggest one small, specific thing the user can do today, in 2-4 sentences, and say briefly why it helps.
Write plain prose without lists or headings.
Focus: `

func builtinCategories() map[string]Spec {
	focus := map[string]string{
		"emotion":      "emotional awareness and self-compassion.",
		"growth":       "learning something new or building a good habit.",
		"health":       "sleep, movement, or nutrition.",
		"relationship": "connecting with family, friends, or colleagues.",
		"career":       "work, study, or long-term ambitions.",
		"leisure":      "rest, play, creativity, or enjoying the moment.",
	}
	specs := make(map[string]Spec, len(focus))
	for key, f := range focus {
		specs[key] = Spec{
			SystemDirective:     suggestionBase + f,
			AppendContentPolicy: true,
			Shape:               extract.SuggestionShape,
		}
	}
	return specs
}
