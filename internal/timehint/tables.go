package timehint

import (
	"regexp"

	"github.com/hurttlocker/taskmine/internal/task"
)

const num = `(\d+(?:\.\d+)?)`

// Korean is the phrase table used by the workshop's Korean-language input.
func Korean() Table {
	return Table{
		Name: "ko",
		TimePatterns: []TimePattern{
			{Name: "hours+minutes", Regex: regexp.MustCompile(`(\d+)\s*시간\s*(\d+)\s*분`),
				Hours: func(g []string) float64 { return atof(g[1]) + atof(g[2])/60 }},
			{Name: "hours", Regex: regexp.MustCompile(num + `\s*시간`),
				Hours: func(g []string) float64 { return atof(g[1]) }},
			{Name: "minutes", Regex: regexp.MustCompile(`(\d+)\s*분`),
				Hours: func(g []string) float64 { return atof(g[1]) / 60 }},
			{Name: "per-day", Regex: regexp.MustCompile(`일\s*` + num + `\s*시간`),
				Hours: func(g []string) float64 { return atof(g[1]) }},
			{Name: "per-week", Regex: regexp.MustCompile(`주\s*` + num + `\s*시간`),
				Hours: func(g []string) float64 { return atof(g[1]) / workDaysPerWeek }},
			{Name: "per-month", Regex: regexp.MustCompile(`월\s*` + num + `\s*시간`),
				Hours: func(g []string) float64 { return atof(g[1]) / workDaysPerMonth }},
			{Name: "times-a-week-each", Regex: regexp.MustCompile(`주\s*(\d+)\s*회[,\s]*각\s*` + num + `\s*시간`),
				Hours: func(g []string) float64 { return atof(g[2]) }},
			{Name: "times-a-week-apiece", Regex: regexp.MustCompile(`주\s*(\d+)\s*회[,\s]*` + num + `\s*시간\s*씩`),
				Hours: func(g []string) float64 { return atof(g[2]) }},
			{Name: "a-day", Regex: regexp.MustCompile(`하루\s*` + num + `\s*시간`),
				Hours: func(g []string) float64 { return atof(g[1]) }},
			{Name: "and-a-half", Regex: regexp.MustCompile(`(\d+)\s*시간\s*반`),
				Hours: func(g []string) float64 { return atof(g[1]) + 0.5 }},
			{Name: "day-and-a-half", Regex: regexp.MustCompile(`하루\s*반`),
				Hours: func([]string) float64 { return 1.5 * workDayHours }},
		},
		FrequencyPatterns: []FrequencyPattern{
			{Regex: regexp.MustCompile(`매일|일일|하루|매\s*일`), Frequency: task.FrequencyDaily},
			{Regex: regexp.MustCompile(`주간|주\s*\d+\s*회|매\s*주|주별|주단위`), Frequency: task.FrequencyWeekly},
			{Regex: regexp.MustCompile(`월간|월\s*\d+\s*회|매\s*월|월별|월단위`), Frequency: task.FrequencyMonthly},
			{Regex: regexp.MustCompile(`분기|분기별|분기\s*\d+\s*회`), Frequency: task.FrequencyQuarterly},
			{Regex: regexp.MustCompile(`연간|연\s*\d+\s*회|매\s*년|연별|연단위`), Frequency: task.FrequencyYearly},
			{Regex: regexp.MustCompile(`필요시|비정기|수시|가끔`), Frequency: task.FrequencyAdHoc},
		},
	}
}

// English covers the same phrase shapes for English-language input.
func English() Table {
	return Table{
		Name: "en",
		TimePatterns: []TimePattern{
			{Name: "hours+minutes", Regex: regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?|h)\s*(?:and\s*)?(\d+)\s*(?:minutes?|mins?)\b`),
				Hours: func(g []string) float64 { return atof(g[1]) + atof(g[2])/60 }},
			{Name: "hours", Regex: regexp.MustCompile(`(?i)` + num + `\s*(?:hours?|hrs?)\b`),
				Hours: func(g []string) float64 { return atof(g[1]) }},
			{Name: "minutes", Regex: regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?)\b`),
				Hours: func(g []string) float64 { return atof(g[1]) / 60 }},
			{Name: "per-week", Regex: regexp.MustCompile(`(?i)` + num + `\s*(?:hours?|hrs?)\s*(?:a|per|each)\s*week\b`),
				Hours: func(g []string) float64 { return atof(g[1]) / workDaysPerWeek }},
			{Name: "per-month", Regex: regexp.MustCompile(`(?i)` + num + `\s*(?:hours?|hrs?)\s*(?:a|per|each)\s*month\b`),
				Hours: func(g []string) float64 { return atof(g[1]) / workDaysPerMonth }},
			{Name: "times-a-week-each", Regex: regexp.MustCompile(`(?i)(\d+)\s*times?\s*(?:a|per)\s*week,?\s*(?:at\s*)?` + num + `\s*(?:hours?|hrs?)\s*each\b`),
				Hours: func(g []string) float64 { return atof(g[2]) }},
			{Name: "and-a-half", Regex: regexp.MustCompile(`(?i)(\d+)\s*and\s*a\s*half\s*hours?\b`),
				Hours: func(g []string) float64 { return atof(g[1]) + 0.5 }},
			{Name: "day-and-a-half", Regex: regexp.MustCompile(`(?i)\ba\s*day\s*and\s*a\s*half\b`),
				Hours: func([]string) float64 { return 1.5 * workDayHours }},
		},
		FrequencyPatterns: []FrequencyPattern{
			{Regex: regexp.MustCompile(`(?i)\b(?:daily|every\s*day|each\s*day|per\s*day)\b`), Frequency: task.FrequencyDaily},
			{Regex: regexp.MustCompile(`(?i)\b(?:weekly|every\s*week|\d+\s*times?\s*(?:a|per)\s*week)\b`), Frequency: task.FrequencyWeekly},
			{Regex: regexp.MustCompile(`(?i)\b(?:monthly|every\s*month|\d+\s*times?\s*(?:a|per)\s*month)\b`), Frequency: task.FrequencyMonthly},
			{Regex: regexp.MustCompile(`(?i)\b(?:quarterly|every\s*quarter)\b`), Frequency: task.FrequencyQuarterly},
			{Regex: regexp.MustCompile(`(?i)\b(?:yearly|annually|every\s*year)\b`), Frequency: task.FrequencyYearly},
			{Regex: regexp.MustCompile(`(?i)\b(?:ad[\s-]?hoc|as\s*needed|occasionally|irregularly)\b`), Frequency: task.FrequencyAdHoc},
		},
	}
}
