package timehint

import (
	"strings"
	"testing"

	"github.com/hurttlocker/taskmine/internal/task"
)

func ptrFreq(f task.Frequency) *task.Frequency { return &f }
func ptrHours(h float64) *float64            { return &h }

func TestNormalize_Korean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		hours *float64
		freq  *task.Frequency
	}{
		{"times a week each", "고객 VOC 분석은 주 2회, 각 1시간씩 수행합니다.", ptrHours(1), ptrFreq(task.FrequencyWeekly)},
		{"hours and minutes", "매일 고객 문의 처리에 1시간 30분이 소요됩니다.", ptrHours(1.5), ptrFreq(task.FrequencyDaily)},
		{"minutes only", "매일 아침 30분 동안 이메일을 확인합니다.", ptrHours(0.5), ptrFreq(task.FrequencyDaily)},
		{"weekly total keeps larger raw value", "데이터 분석에 주 10시간을 투입합니다.", ptrHours(10), nil},
		{"monthly total keeps larger raw value", "월 20시간 정도 리포트 작성에 사용됩니다.", ptrHours(20), nil},
		{"and a half", "주간 회의는 매주 2시간 반 소요됩니다.", ptrHours(2.5), ptrFreq(task.FrequencyWeekly)},
		{"a day", "고객 응대에 하루 3시간이 필요합니다.", ptrHours(3), ptrFreq(task.FrequencyDaily)},
		{"monthly compound", "월간 보고서 작성은 매월 5시간이 걸립니다.", ptrHours(5), ptrFreq(task.FrequencyMonthly)},
		{"quarterly", "분기별로 전략 회의를 3시간 진행합니다.", ptrHours(3), ptrFreq(task.FrequencyQuarterly)},
		{"no information", "고객과 미팅을 진행합니다.", nil, nil},
		{"daily phrase", "팀은 매일 2시간씩 보고서를 작성합니다", ptrHours(2), ptrFreq(task.FrequencyDaily)},
		{"ad hoc", "필요시 30분 정도 자료를 정리합니다.", ptrHours(0.5), ptrFreq(task.FrequencyAdHoc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assertHours(t, got.TimeSpentHours, tt.hours)
			assertFreq(t, got.Frequency, tt.freq)
		})
	}
}

func TestNormalize_English(t *testing.T) {
	tests := []struct {
		name  string
		input string
		hours *float64
		freq  *task.Frequency
	}{
		{"hours and minutes", "We spend 2 hours and 30 minutes daily on invoices.", ptrHours(2.5), ptrFreq(task.FrequencyDaily)},
		{"times a week each", "Reviews happen 3 times a week, 2 hours each.", ptrHours(2), ptrFreq(task.FrequencyWeekly)},
		{"minutes", "About 45 minutes every month for the audit.", ptrHours(0.75), ptrFreq(task.FrequencyMonthly)},
		{"quarterly", "Quarterly planning takes 4 hrs.", ptrHours(4), ptrFreq(task.FrequencyQuarterly)},
		{"nothing", "We meet the client.", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assertHours(t, got.TimeSpentHours, tt.hours)
			assertFreq(t, got.Frequency, tt.freq)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first := Normalize("2.5시간")
	if first.TimeSpentHours == nil || *first.TimeSpentHours != 2.5 {
		t.Fatalf("first pass: %+v", first)
	}
	second := Normalize(strings.Join(first.MatchedPhrases, " "))
	if second.TimeSpentHours == nil || *second.TimeSpentHours != 2.5 {
		t.Fatalf("second pass: %+v", second)
	}
}

func TestNormalize_MatchedPhrases(t *testing.T) {
	got := Normalize("고객 VOC 분석은 주 2회, 각 1시간씩 수행합니다.")
	want := map[string]bool{"1시간": false, "주 2회, 각 1시간": false, "주 2회": false}
	for _, p := range got.MatchedPhrases {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Errorf("phrase %q missing from %v", p, got.MatchedPhrases)
		}
	}
	seen := map[string]bool{}
	for _, p := range got.MatchedPhrases {
		if seen[p] {
			t.Errorf("duplicate phrase %q", p)
		}
		seen[p] = true
	}
}

func TestNormalize_RoundsToTwoDecimals(t *testing.T) {
	got := Normalize("10분")
	if got.TimeSpentHours == nil || *got.TimeSpentHours != 0.17 {
		t.Fatalf("got %+v", got.TimeSpentHours)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	got := Normalize("")
	if !got.Empty() {
		t.Fatalf("expected empty hint, got %+v", got)
	}
	if got.MatchedPhrases == nil {
		t.Error("matched phrases should be an empty slice, not nil")
	}
	if got.PromptBlock() != "" {
		t.Errorf("prompt block: %q", got.PromptBlock())
	}
}

func TestHint_PromptBlock(t *testing.T) {
	block := Normalize("팀은 매일 2시간씩 보고서를 작성합니다").PromptBlock()
	for _, want := range []string{"timeSpentHours: 2", "frequency: Daily"} {
		if !strings.Contains(block, want) {
			t.Errorf("prompt block %q missing %q", block, want)
		}
	}
}

func TestNew_CustomTable(t *testing.T) {
	n := New(English())
	if got := n.Normalize("매일 2시간"); !got.Empty() {
		t.Fatalf("english-only normalizer matched korean text: %+v", got)
	}
	if got := n.Normalize("daily, 2 hours"); got.Frequency == nil || *got.Frequency != task.FrequencyDaily {
		t.Fatalf("got %+v", got)
	}
}

func assertHours(t *testing.T, got, want *float64) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("hours: got %v, want nil", *got)
	case want != nil && got == nil:
		t.Errorf("hours: got nil, want %v", *want)
	case want != nil && *got != *want:
		t.Errorf("hours: got %v, want %v", *got, *want)
	}
}

func assertFreq(t *testing.T, got, want *task.Frequency) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("frequency: got %v, want nil", *got)
	case want != nil && got == nil:
		t.Errorf("frequency: got nil, want %v", *want)
	case want != nil && *got != *want:
		t.Errorf("frequency: got %v, want %v", *got, *want)
	}
}
