package task

import (
	"encoding/json"
	"strings"
	"testing"
)

func candidatesFromJSON(t *testing.T, src string) []Candidate {
	t.Helper()
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(src), &raws); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	out := make([]Candidate, len(raws))
	for i, r := range raws {
		out[i] = NewCandidate(r)
	}
	return out
}

const validRecord = `{
	"title": "고객 문의 메일 확인",
	"description": "매일 오전 9시 고객 문의 메일을 확인하고 답변을 작성합니다.",
	"domain": "고객 지원",
	"estimatedStatus": "Progress",
	"frequency": "Daily",
	"automationPotential": "High",
	"source": "Uploaded",
	"timeSpentHours": 2.5,
	"automationMethod": "AI 챗봇 활용",
	"estimatedSavingsHours": 50,
	"complexity": "Moderate",
	"priority": "High",
	"tags": ["고객지원", "메일"]
}`

func withField(t *testing.T, key string, value any) string {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(validRecord), &m); err != nil {
		t.Fatal(err)
	}
	if value == nil {
		delete(m, key)
	} else {
		m[key] = value
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func TestValidate_AcceptsValidRecord(t *testing.T) {
	v := NewValidator()
	rep := v.Validate(candidatesFromJSON(t, "["+validRecord+"]"))
	if len(rep.Invalid) != 0 {
		t.Fatalf("unexpected rejections: %+v", rep.Invalid)
	}
	if len(rep.Valid) != 1 {
		t.Fatalf("expected 1 valid task, got %d", len(rep.Valid))
	}
	got := rep.Valid[0]
	if got.TimeSpentHours != 2.5 || got.Frequency != FrequencyDaily || got.Source != SourceUploaded {
		t.Errorf("decoded task mismatch: %+v", got)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags: got %v", got.Tags)
	}
}

func TestValidate_PartialFailureKeepsIndex(t *testing.T) {
	v := NewValidator()
	src := "[" + validRecord + "," + withField(t, "timeSpentHours", 30) + "," + validRecord + "]"
	rep := v.Validate(candidatesFromJSON(t, src))

	if len(rep.Valid) != 2 {
		t.Fatalf("valid: got %d, want 2", len(rep.Valid))
	}
	if len(rep.Invalid) != 1 {
		t.Fatalf("invalid: got %d, want 1", len(rep.Invalid))
	}
	rej := rep.Invalid[0]
	if rej.Index != 1 {
		t.Errorf("index: got %d, want 1", rej.Index)
	}
	if len(rej.Errors) != 1 || rej.Errors[0].Field != "timeSpentHours" {
		t.Fatalf("errors: %+v", rej.Errors)
	}
	if rej.Errors[0].Message != "timeSpentHours must be ≤ 24" {
		t.Errorf("message: %q", rej.Errors[0].Message)
	}
}

func TestValidate_FieldMessages(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		field string
		want  string
	}{
		{"time below minimum", "timeSpentHours", 0.05, "timeSpentHours", "timeSpentHours must be ≥ 0.1"},
		{"missing time", "timeSpentHours", nil, "timeSpentHours", "timeSpentHours is required"},
		{"title too long", "title", strings.Repeat("가", 51), "title", "title must be at most 50 characters"},
		{"short description", "description", "짧음", "description", "description must be at least 10 characters"},
		{"bad status", "estimatedStatus", "Doing", "estimatedStatus", "estimatedStatus must be one of Progress, Planned, NotStarted, Completed"},
		{"savings too high", "estimatedSavingsHours", 1200, "estimatedSavingsHours", "estimatedSavingsHours must be ≤ 1000"},
		{"time as string", "timeSpentHours", "2", "timeSpentHours", "timeSpentHours must be a number"},
		{"tags not strings", "tags", []any{1, 2}, "tags", "tags must be an array of strings"},
		{"blank domain", "domain", "   ", "domain", "domain is required"},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidatesFromJSON(t, "["+withField(t, tt.key, tt.value)+"]")[0]
			_, errs := v.ValidateOne(c)
			if len(errs) != 1 {
				t.Fatalf("expected exactly one error, got %+v", errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("field: got %q, want %q", errs[0].Field, tt.field)
			}
			if errs[0].Message != tt.want {
				t.Errorf("message: got %q, want %q", errs[0].Message, tt.want)
			}
		})
	}
}

func TestValidate_TooManyTags(t *testing.T) {
	tags := make([]any, 11)
	for i := range tags {
		tags[i] = "t"
	}
	v := NewValidator()
	_, errs := v.ValidateOne(candidatesFromJSON(t, "["+withField(t, "tags", tags)+"]")[0])
	if len(errs) != 1 || errs[0].Message != "tags must have at most 10 items" {
		t.Fatalf("got %+v", errs)
	}
}

func TestValidate_CanonicalisesEnumSpellings(t *testing.T) {
	src := withField(t, "estimatedStatus", "Not Started")
	var m map[string]any
	_ = json.Unmarshal([]byte(src), &m)
	m["frequency"] = "ad-hoc"
	m["source"] = "uploaded"
	m["complexity"] = "simple"
	m["priority"] = "LOW"
	b, _ := json.Marshal(m)

	v := NewValidator()
	got, errs := v.ValidateOne(candidatesFromJSON(t, "["+string(b)+"]")[0])
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got.EstimatedStatus != StatusNotStarted || got.Frequency != FrequencyAdHoc ||
		got.Source != SourceUploaded || got.Complexity != ComplexitySimple || got.Priority != LevelLow {
		t.Errorf("canonicalisation failed: %+v", got)
	}
}

func TestValidate_LegacyNumberKeys(t *testing.T) {
	var m map[string]any
	_ = json.Unmarshal([]byte(validRecord), &m)
	delete(m, "timeSpentHours")
	delete(m, "estimatedSavingsHours")
	m["timeSpent"] = 1.5
	m["estimatedSavings"] = 12.0
	b, _ := json.Marshal(m)

	got, errs := NewValidator().ValidateOne(candidatesFromJSON(t, "["+string(b)+"]")[0])
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got.TimeSpentHours != 1.5 || got.EstimatedSavingsHours != 12 {
		t.Errorf("got %+v", got)
	}
}

func TestValidate_NonObjectElement(t *testing.T) {
	rep := NewValidator().Validate(candidatesFromJSON(t, `["just a string", 42, `+validRecord+`]`))
	if len(rep.Valid) != 1 || len(rep.Invalid) != 2 {
		t.Fatalf("valid=%d invalid=%d", len(rep.Valid), len(rep.Invalid))
	}
	for i, rej := range rep.Invalid {
		if rej.Index != i {
			t.Errorf("rejection %d has index %d", i, rej.Index)
		}
		if rej.Errors[0].Field != "$" {
			t.Errorf("rejection %d field: %q", i, rej.Errors[0].Field)
		}
	}
}

func TestValidate_MissingTagsIsEmpty(t *testing.T) {
	got, errs := NewValidator().ValidateOne(candidatesFromJSON(t, "["+withField(t, "tags", nil)+"]")[0])
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("tags: %#v", got.Tags)
	}
}

func TestCheck_TypedTask(t *testing.T) {
	good, _ := NewValidator().ValidateOne(candidatesFromJSON(t, "["+validRecord+"]")[0])
	v := NewValidator()
	if errs := v.Check(good); len(errs) != 0 {
		t.Fatalf("valid task rejected: %+v", errs)
	}
	good.EstimatedStatus = "Archived"
	errs := v.Check(good)
	if len(errs) != 1 || errs[0].Field != "estimatedStatus" {
		t.Fatalf("got %+v", errs)
	}
}

func TestParseFrequency(t *testing.T) {
	for in, want := range map[string]Frequency{
		"daily": FrequencyDaily, "Ad-hoc": FrequencyAdHoc, "ADHOC": FrequencyAdHoc, " quarterly ": FrequencyQuarterly,
	} {
		got, ok := ParseFrequency(in)
		if !ok || got != want {
			t.Errorf("ParseFrequency(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseFrequency("fortnightly"); ok {
		t.Error("fortnightly should not parse")
	}
}
