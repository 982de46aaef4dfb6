// Package timehint turns free-form duration and frequency phrases into a
// numeric hours-per-occurrence value and a categorical frequency.
//
// The phrase patterns live in replaceable tables (Korean, English) so that
// another locale only needs a new Table, not a new algorithm.
package timehint

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hurttlocker/taskmine/internal/task"
)

// TimePattern converts one phrase shape into hours per occurrence.
type TimePattern struct {
	Name  string
	Regex *regexp.Regexp
	Hours func(groups []string) float64
}

// FrequencyPattern maps a phrase shape onto a frequency.
type FrequencyPattern struct {
	Regex     *regexp.Regexp
	Frequency task.Frequency
}

// Table is one locale's phrase vocabulary.
type Table struct {
	Name              string
	TimePatterns      []TimePattern
	FrequencyPatterns []FrequencyPattern
}

// Hint is the best-effort result of normalizing a block of text. A nil field
// means nothing matched, which is an expected outcome rather than an error.
type Hint struct {
	TimeSpentHours *float64        `json:"timeSpentHours"`
	Frequency      *task.Frequency `json:"frequency"`
	MatchedPhrases []string        `json:"matchedPhrases"`
}

// Empty reports whether neither a duration nor a frequency was found.
func (h Hint) Empty() bool {
	return h.TimeSpentHours == nil && h.Frequency == nil
}

// PromptBlock renders the hint as prompt lines, or "" when empty.
func (h Hint) PromptBlock() string {
	if h.Empty() {
		return ""
	}
	var lines []string
	if h.TimeSpentHours != nil {
		lines = append(lines, "timeSpentHours: "+strconv.FormatFloat(*h.TimeSpentHours, 'f', -1, 64))
	}
	if h.Frequency != nil {
		lines = append(lines, "frequency: "+string(*h.Frequency))
	}
	if len(h.MatchedPhrases) > 0 {
		lines = append(lines, "matchedPhrases: "+strings.Join(h.MatchedPhrases, ", "))
	}
	return strings.Join(lines, "\n")
}

// Normalizer applies a merged set of tables. It holds no mutable state.
type Normalizer struct {
	timePatterns []TimePattern
	freqPatterns []FrequencyPattern
}

// New merges the given tables. With no tables it uses Korean then English.
// Frequency patterns are ordered by frequency priority first and table order
// second, so "first match wins" means the same thing across locales.
func New(tables ...Table) *Normalizer {
	if len(tables) == 0 {
		tables = []Table{Korean(), English()}
	}
	n := &Normalizer{}
	for _, t := range tables {
		n.timePatterns = append(n.timePatterns, t.TimePatterns...)
		n.freqPatterns = append(n.freqPatterns, t.FrequencyPatterns...)
	}
	rank := make(map[task.Frequency]int, len(task.Frequencies))
	for i, f := range task.Frequencies {
		rank[f] = i
	}
	sort.SliceStable(n.freqPatterns, func(i, j int) bool {
		return rank[n.freqPatterns[i].Frequency] < rank[n.freqPatterns[j].Frequency]
	})
	return n
}

// Normalize scans text with every time pattern and keeps the largest value;
// ties keep the first match. Frequency is the first pattern that matches in
// priority order (Daily before Weekly before ... AdHoc).
func (n *Normalizer) Normalize(text string) Hint {
	hint := Hint{MatchedPhrases: []string{}}
	seen := map[string]bool{}
	addPhrase := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		hint.MatchedPhrases = append(hint.MatchedPhrases, p)
	}

	best := 0.0
	for _, p := range n.timePatterns {
		for _, m := range p.Regex.FindAllStringSubmatch(text, -1) {
			v := p.Hours(m)
			addPhrase(m[0])
			if v > best {
				best = v
			}
		}
	}
	if best > 0 {
		v := math.Round(best*100) / 100
		hint.TimeSpentHours = &v
	}

	for _, p := range n.freqPatterns {
		if m := p.Regex.FindString(text); m != "" {
			f := p.Frequency
			hint.Frequency = &f
			addPhrase(m)
			break
		}
	}

	return hint
}

// Normalize runs the default Korean+English normalizer.
func Normalize(text string) Hint {
	return defaultNormalizer.Normalize(text)
}

var defaultNormalizer = New()

func atof(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// Working-day conversions used when a total is stated per week or month.
const (
	workDaysPerWeek  = 5
	workDaysPerMonth = 20
	workDayHours     = 8
)
