// Package task defines the automatable-work record that flows through taskmine:
// the unvalidated Candidate parsed from model output, the validated Task, and
// the enumerations that make up the Task wire shape.
package task

import (
	"encoding/json"
	"strings"
)

// Status is the kanban column a task currently sits in.
type Status string

const (
	StatusProgress   Status = "Progress"
	StatusPlanned    Status = "Planned"
	StatusNotStarted Status = "NotStarted"
	StatusCompleted  Status = "Completed"
)

// Frequency is how often the work recurs. The declaration order is also the
// priority order used by the time-expression normalizer.
type Frequency string

const (
	FrequencyDaily     Frequency = "Daily"
	FrequencyWeekly    Frequency = "Weekly"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyYearly    Frequency = "Yearly"
	FrequencyAdHoc     Frequency = "AdHoc"
)

// Level is a three-step rating shared by automationPotential and priority.
type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

// Source records where the task was found.
type Source string

const (
	SourceUploaded Source = "Uploaded"
	SourceManual   Source = "Manual"
)

// Complexity estimates the automation effort.
type Complexity string

const (
	ComplexitySimple   Complexity = "Simple"
	ComplexityModerate Complexity = "Moderate"
	ComplexityComplex  Complexity = "Complex"
)

// Statuses lists every Status in display order.
var Statuses = []Status{StatusProgress, StatusPlanned, StatusNotStarted, StatusCompleted}

// Frequencies lists every Frequency in priority order.
var Frequencies = []Frequency{
	FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
	FrequencyQuarterly, FrequencyYearly, FrequencyAdHoc,
}

// Levels lists every Level from highest to lowest.
var Levels = []Level{LevelHigh, LevelMedium, LevelLow}

// Sources lists every Source.
var Sources = []Source{SourceUploaded, SourceManual}

// Complexities lists every Complexity from easiest to hardest.
var Complexities = []Complexity{ComplexitySimple, ComplexityModerate, ComplexityComplex}

// Schema bounds.
const (
	MaxTitleLength       = 50
	MinDescriptionLength = 10
	MaxDescriptionLength = 500
	MinTimeSpentHours    = 0.1
	MaxTimeSpentHours    = 24
	MaxSavingsHours      = 1000
	MaxTags              = 10
)

// Task is a validated unit of repetitive work. Field names and enum values
// are the wire contract the UI and persistence layers depend on.
type Task struct {
	ID                    string     `json:"id,omitempty"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Domain                string     `json:"domain"`
	EstimatedStatus       Status     `json:"estimatedStatus"`
	Frequency             Frequency  `json:"frequency"`
	AutomationPotential   Level      `json:"automationPotential"`
	Source                Source     `json:"source"`
	TimeSpentHours        float64    `json:"timeSpentHours"`
	AutomationMethod      string     `json:"automationMethod,omitempty"`
	EstimatedSavingsHours float64    `json:"estimatedSavingsHours"`
	Complexity            Complexity `json:"complexity"`
	Priority              Level      `json:"priority"`
	Tags                  []string   `json:"tags"`
}

// Candidate is one element of the model's JSON array before validation.
// Fields is nil when the element was not a JSON object.
type Candidate struct {
	Fields map[string]any
	Raw    json.RawMessage
}

// NewCandidate wraps a raw JSON array element.
func NewCandidate(raw json.RawMessage) Candidate {
	c := Candidate{Raw: raw}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		c.Fields = fields
	}
	return c
}

// MarshalJSON emits the element exactly as the model produced it.
func (c Candidate) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}

// canonicalKey folds case and drops separators so "Not Started", "not_started"
// and "NotStarted" all compare equal.
func canonicalKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseEnum[T ~string](raw string, values []T) (T, bool) {
	key := canonicalKey(raw)
	if key == "" {
		return "", false
	}
	for _, v := range values {
		if canonicalKey(string(v)) == key {
			return v, true
		}
	}
	return "", false
}

// ParseStatus maps a spelling variant onto a Status.
func ParseStatus(s string) (Status, bool) { return parseEnum(s, Statuses) }

// ParseFrequency maps a spelling variant onto a Frequency.
func ParseFrequency(s string) (Frequency, bool) { return parseEnum(s, Frequencies) }

// ParseLevel maps a spelling variant onto a Level.
func ParseLevel(s string) (Level, bool) { return parseEnum(s, Levels) }

// ParseSource maps a spelling variant onto a Source.
func ParseSource(s string) (Source, bool) { return parseEnum(s, Sources) }

// ParseComplexity maps a spelling variant onto a Complexity.
func ParseComplexity(s string) (Complexity, bool) { return parseEnum(s, Complexities) }

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = make([]string, len(t.Tags))
		copy(out.Tags, t.Tags)
	}
	return out
}
