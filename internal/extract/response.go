// Package extract pulls the JSON array of task candidates out of raw model
// output. Model output is unreliable: it may wrap the array in prose or code
// fences, truncate it, or omit it entirely. Extract never panics on any of
// those; it returns either the parsed records or a typed Failure.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/taskmine/internal/task"
)

// MaxAttempts caps how many strategies are tried for one response.
const MaxAttempts = 3

// sampleLimit bounds the raw text kept on a Failure, in runes.
const sampleLimit = 1000

// Strategy names the technique that located the array.
type Strategy string

const (
	StrategyFirstBracketSpan Strategy = "first-bracket-span"
	StrategyStripCodeFences  Strategy = "strip-code-fences"
	StrategyOuterBrackets    Strategy = "outer-brackets"
)

// FailureKind distinguishes "nothing array-shaped" from "found, but invalid".
type FailureKind string

const (
	KindJSONNotFound   FailureKind = "json_not_found"
	KindJSONParseError FailureKind = "json_parse_error"
)

// Failure describes a response no strategy could turn into an array.
type Failure struct {
	Kind        FailureKind `json:"kind"`
	RawSample   string      `json:"rawSample"`
	ParseDetail string      `json:"parseDetail,omitempty"`
}

func (f *Failure) Error() string {
	if f.ParseDetail != "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.ParseDetail)
	}
	return string(f.Kind)
}

// Result is the tagged outcome of Extract. Exactly one of Records (possibly
// empty) or Failure is meaningful: Failure == nil means success.
type Result struct {
	Records  []task.Candidate
	Failure  *Failure
	Attempts int
	Strategy Strategy
}

// OK reports whether an array was recovered. An empty array is a success.
func (r Result) OK() bool { return r.Failure == nil }

type strategy struct {
	name   Strategy
	locate func(raw string) (string, bool)
}

var (
	bracketSpanRE = regexp.MustCompile(`(?s)\[.*?\]`)
	codeFenceRE   = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*(.*?)\\s*```")
)

// strategies are tried in order, one per attempt.
var strategies = [MaxAttempts]strategy{
	{StrategyFirstBracketSpan, firstBracketSpan},
	{StrategyStripCodeFences, fencedBody},
	{StrategyOuterBrackets, outerBrackets},
}

// Extract runs the strategy chain from the first attempt.
func Extract(raw string) Result {
	return ExtractFrom(raw, 0)
}

// ExtractFrom resumes the strategy chain at the given attempt. Each failing
// attempt advances to the next strategy instead of repeating itself; once
// MaxAttempts is reached a Failure is returned.
func ExtractFrom(raw string, attempt int) Result {
	if attempt < 0 {
		attempt = 0
	}
	return next(raw, attempt, nil)
}

func next(raw string, attempt int, last *Failure) Result {
	if attempt >= MaxAttempts {
		if last == nil {
			last = &Failure{Kind: KindJSONNotFound}
		}
		last.RawSample = truncateSample(raw, sampleLimit)
		return Result{Failure: last, Attempts: attempt}
	}

	s := strategies[attempt]
	span, found := s.locate(raw)
	if !found {
		// A parse error from an earlier strategy is more informative than
		// "not found" from this one.
		if last == nil {
			last = &Failure{Kind: KindJSONNotFound}
		}
		return next(raw, attempt+1, last)
	}

	records, err := parseArray(span)
	if err != nil {
		return next(raw, attempt+1, &Failure{
			Kind:        KindJSONParseError,
			ParseDetail: fmt.Sprintf("%s: %v", s.name, err),
		})
	}
	return Result{Records: records, Attempts: attempt + 1, Strategy: s.name}
}

func parseArray(span string) ([]task.Candidate, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(span), &raws); err != nil {
		return nil, err
	}
	if raws == nil {
		return nil, fmt.Errorf("top-level value is not an array")
	}
	out := make([]task.Candidate, 0, len(raws))
	for _, r := range raws {
		out = append(out, task.NewCandidate(r))
	}
	return out, nil
}

func firstBracketSpan(raw string) (string, bool) {
	m := bracketSpanRE.FindString(raw)
	return m, m != ""
}

func outerBrackets(raw string) (string, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// fencedBody returns the outermost brackets inside the first ``` or ```lang
// block, ignoring whatever prose follows the closing fence.
func fencedBody(raw string) (string, bool) {
	m := codeFenceRE.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return outerBrackets(m[1])
}

func truncateSample(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
