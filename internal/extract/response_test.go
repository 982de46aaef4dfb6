package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtract_ProseAndFences(t *testing.T) {
	raw := "Here is the result: ```json\n[{\"title\":\"a\"}]\n``` Thanks"
	res := Extract(raw)
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records: got %d, want 1", len(res.Records))
	}
	if res.Records[0].Fields["title"] != "a" {
		t.Errorf("title: %v", res.Records[0].Fields["title"])
	}
	if res.Strategy != StrategyFirstBracketSpan || res.Attempts != 1 {
		t.Errorf("strategy=%s attempts=%d", res.Strategy, res.Attempts)
	}
}

func TestExtract_NestedArrayFallsThroughToOuterBrackets(t *testing.T) {
	raw := `결과입니다:
[{"title":"보고서 작성","tags":["보고","주간"]},{"title":"메일","tags":[]}]
이상입니다.`
	res := Extract(raw)
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(res.Records))
	}
	if res.Strategy != StrategyOuterBrackets || res.Attempts != 3 {
		t.Errorf("strategy=%s attempts=%d", res.Strategy, res.Attempts)
	}
}

func TestExtract_FencedArrayWithTrailingBrackets(t *testing.T) {
	raw := "```json\n[{\"title\":\"a\",\"tags\":[\"x\"]},{\"title\":\"b\",\"tags\":[]}]\n```\n[참고] 위 업무는 예시입니다."
	res := Extract(raw)
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if res.Strategy != StrategyStripCodeFences || res.Attempts != 2 {
		t.Errorf("strategy=%s attempts=%d", res.Strategy, res.Attempts)
	}
	if len(res.Records) != 2 || res.Records[1].Fields["title"] != "b" {
		t.Errorf("records: %+v", res.Records)
	}
}

func TestExtract_FenceWithoutLanguage(t *testing.T) {
	span, ok := fencedBody("앞부분 ```\n [1, [2]] \n``` 뒷부분 ```json\n[3]\n```")
	if !ok || span != "[1, [2]]" {
		t.Errorf("span=%q ok=%v", span, ok)
	}
	if _, ok := fencedBody("[1] no fence"); ok {
		t.Error("text without a fence has no fenced body")
	}
}

func TestExtract_EmptyArrayIsSuccess(t *testing.T) {
	res := Extract("No tasks found: []")
	if !res.OK() {
		t.Fatalf("empty array should succeed, got %v", res.Failure)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("records: %#v", res.Records)
	}
}

func TestExtract_NonObjectElementsPassThrough(t *testing.T) {
	res := Extract(`["just a string", 42, {"title":"x"}]`)
	if !res.OK() || len(res.Records) != 3 {
		t.Fatalf("got %+v", res)
	}
	if res.Records[0].Fields != nil || res.Records[2].Fields == nil {
		t.Errorf("fields: %+v", res.Records)
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind FailureKind
	}{
		{"empty", "", KindJSONNotFound},
		{"prose only", "I cannot help with that.", KindJSONNotFound},
		{"truncated array", `[{"title":"a"`, KindJSONNotFound},
		{"broken json", `[{"title": a}]`, KindJSONParseError},
		{"object not array", "```json\n{\"title\":\"a\"}\n```", KindJSONNotFound},
		{"trailing comma", "[{\"title\":\"a\"},]", KindJSONParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.raw)
			if res.OK() {
				t.Fatalf("expected failure, got %d records", len(res.Records))
			}
			if res.Failure.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", res.Failure.Kind, tt.kind)
			}
			if res.Attempts != MaxAttempts {
				t.Errorf("attempts: got %d, want %d", res.Attempts, MaxAttempts)
			}
			if res.Failure.RawSample != tt.raw {
				t.Errorf("raw sample: %q", res.Failure.RawSample)
			}
			if res.Failure.Error() == "" {
				t.Error("failure should render as an error")
			}
		})
	}
}

func TestExtract_ParseErrorCarriesDetail(t *testing.T) {
	res := Extract(`[{"title": a}]`)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Failure.ParseDetail, string(StrategyOuterBrackets)) {
		t.Errorf("detail should name the last strategy: %q", res.Failure.ParseDetail)
	}
}

func TestExtract_SampleIsTruncated(t *testing.T) {
	raw := strings.Repeat("가", 1500)
	res := Extract(raw)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if n := utf8.RuneCountInString(res.Failure.RawSample); n != 1000 {
		t.Errorf("sample runes: got %d, want 1000", n)
	}
}

func TestExtractFrom_StartsAtGivenAttempt(t *testing.T) {
	raw := `prefix [{"title":"a","tags":["x"]}] suffix`
	res := ExtractFrom(raw, 2)
	if !res.OK() || res.Strategy != StrategyOuterBrackets {
		t.Fatalf("got %+v", res)
	}
	if res := ExtractFrom(raw, MaxAttempts); res.OK() {
		t.Fatal("attempt past the cap should fail without trying a strategy")
	}
}

func TestExtract_NeverPanics(t *testing.T) {
	inputs := []string{"[", "]", "][", "[[[[", "]]]]", "```", "``````", "[\x00]", "\xff\xfe[1]", "[1,2,3]"}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Extract(%q) panicked: %v", in, r)
				}
			}()
			_ = Extract(in)
		}()
	}
}
