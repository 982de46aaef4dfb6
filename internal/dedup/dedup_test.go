package dedup

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hurttlocker/taskmine/internal/task"
)

func mkTask(title, desc, domain string, freq task.Frequency, hours, savings float64, tags ...string) task.Task {
	if tags == nil {
		tags = []string{}
	}
	return task.Task{
		Title:                 title,
		Description:           desc,
		Domain:                domain,
		EstimatedStatus:       task.StatusProgress,
		Frequency:             freq,
		AutomationPotential:   task.LevelHigh,
		Source:                task.SourceUploaded,
		TimeSpentHours:        hours,
		EstimatedSavingsHours: savings,
		Complexity:            task.ComplexitySimple,
		Priority:              task.LevelMedium,
		Tags:                  tags,
	}
}

func workshopSample() []task.Task {
	return []task.Task{
		mkTask("고객 문의 메일 확인", "매일 오전 9시 고객 문의 메일을 확인하고 답변을 작성합니다.", "고객 지원", task.FrequencyDaily, 2, 40),
		mkTask("고객 문의 이메일 처리", "고객 문의 이메일을 확인하고 답변을 작성하는 업무입니다.", "고객 지원", task.FrequencyDaily, 1.5, 30),
		mkTask("주간 마케팅 리포트 작성", "매주 월요일 마케팅 캠페인 성과를 분석하고 보고서를 작성합니다.", "마케팅", task.FrequencyWeekly, 3, 12, "리포트"),
		mkTask("주간 마케팅 보고서 작성", "주간 마케팅 성과를 분석하여 보고서를 작성하고 공유합니다.", "마케팅", task.FrequencyWeekly, 2.5, 10, "보고서"),
		mkTask("월간 데이터 분석", "매월 초 전체 비즈니스 데이터를 분석하고 인사이트를 도출합니다.", "데이터 분석", task.FrequencyMonthly, 5, 5),
		mkTask("재고 현황 모니터링", "실시간으로 재고 현황을 모니터링하고 부족 시 알림을 발송합니다.", "운영", task.FrequencyDaily, 1, 20),
		mkTask("고객 피드백 수집", "고객 피드백을 수집하고 주요 이슈를 분석합니다.", "고객 지원", task.FrequencyWeekly, 2, 8),
		mkTask("경쟁사 분석", "경쟁사의 마케팅 전략을 분석하고 인사이트를 도출합니다.", "마케팅", task.FrequencyMonthly, 4, 4),
	}
}

func titles(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestDeduplicate_SameTitleMergesTags(t *testing.T) {
	a := mkTask("Weekly Report", "Compile the weekly sales report.", "Sales", task.FrequencyWeekly, 2, 10, "a", "b")
	b := mkTask("weekly   report", "Compile the weekly sales report.", "Sales", task.FrequencyWeekly, 2, 10, "b", "c")

	res := Deduplicate([]task.Task{a, b}, DefaultOptions())
	if len(res.Tasks) != 1 {
		t.Fatalf("tasks: got %d, want 1", len(res.Tasks))
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, res.Tasks[0].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if res.Tasks[0].Title != "Weekly Report" {
		t.Errorf("first-seen record should win a tie, kept %q", res.Tasks[0].Title)
	}
	if len(res.Merges) != 1 || res.Merges[0].Reason != "same title" {
		t.Errorf("merges: %+v", res.Merges)
	}
}

func TestDeduplicate_WorkshopSample(t *testing.T) {
	res := Deduplicate(workshopSample(), DefaultOptions())

	want := []string{
		"고객 문의 메일 확인",
		"고객 문의 이메일 처리",
		"주간 마케팅 리포트 작성",
		"월간 데이터 분석",
		"재고 현황 모니터링",
		"고객 피드백 수집",
		"경쟁사 분석",
	}
	if diff := cmp.Diff(want, titles(res.Tasks)); diff != "" {
		t.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
	merged := res.Tasks[2]
	if diff := cmp.Diff([]string{"리포트", "보고서"}, merged.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if len(res.Merges) != 1 || !strings.HasPrefix(res.Merges[0].Reason, "title similarity") {
		t.Errorf("merges: %+v", res.Merges)
	}
}

func TestDeduplicate_DifferentDomainOrFrequencyNotMerged(t *testing.T) {
	a := mkTask("주간 마케팅 리포트 작성", "매주 마케팅 캠페인 성과를 분석하고 보고서를 작성합니다.", "마케팅", task.FrequencyWeekly, 3, 12)
	b := a
	b.Title = "주간 마케팅 보고서 작성"
	b.Domain = "영업"
	c := a
	c.Title = "주간 마케팅 성과 정리"
	c.Frequency = task.FrequencyMonthly

	res := Deduplicate([]task.Task{a, b, c}, DefaultOptions())
	if len(res.Tasks) != 3 {
		t.Fatalf("expected no merges, got %v", titles(res.Tasks))
	}
}

func TestDeduplicate_SameTitleMergesAcrossDomains(t *testing.T) {
	a := mkTask("주간 마케팅 보고서 작성", "매주 마케팅 캠페인 성과를 분석합니다.", "마케팅", task.FrequencyWeekly, 3, 12)
	b := mkTask("주간 마케팅 보고서 작성", "영업팀과 공유할 주간 자료를 만듭니다.", "영업", task.FrequencyMonthly, 1, 4)

	res := Deduplicate([]task.Task{a, b}, DefaultOptions())
	if len(res.Tasks) != 1 || res.Merges[0].Reason != "same title" {
		t.Fatalf("identical titles should merge regardless of domain and frequency: %+v", res.Merges)
	}
}

func TestDeduplicate_DistinctTasksSurviveUnchanged(t *testing.T) {
	in := []task.Task{
		mkTask("급여 명세서 발송", "매월 말 직원별 급여 명세서를 메일로 보냅니다.", "인사", task.FrequencyMonthly, 2, 10, "급여"),
		mkTask("법인카드 영수증 정리", "카드 사용 내역과 증빙을 맞춰 전표에 첨부합니다.", "인사", task.FrequencyMonthly, 3, 15, "증빙"),
	}
	res := Deduplicate(in, DefaultOptions())
	if diff := cmp.Diff(in, res.Tasks); diff != "" {
		t.Errorf("distinct tasks changed (-want +got):\n%s", diff)
	}
	if len(res.Merges) != 0 {
		t.Errorf("merges: %+v", res.Merges)
	}
}

func TestDeduplicate_DescriptionOverlap(t *testing.T) {
	a := mkTask("매출 집계", "매일 지점별 매출 데이터를 엑셀로 취합하고 본사에 보고합니다", "재무", task.FrequencyDaily, 1, 20)
	b := mkTask("일일 실적 보고", "매일 지점별 매출 데이터를 엑셀로 취합하고 본사에 공유합니다", "재무", task.FrequencyDaily, 1, 20)

	res := Deduplicate([]task.Task{a, b}, DefaultOptions())
	if len(res.Tasks) != 1 {
		t.Fatalf("expected a merge, got %v", titles(res.Tasks))
	}
	if !strings.HasPrefix(res.Merges[0].Reason, "description similarity") {
		t.Errorf("reason: %q", res.Merges[0].Reason)
	}
}

func TestDeduplicate_RicherRecordWins(t *testing.T) {
	short := mkTask("고객 문의 처리", "간단한 설명입니다요", "고객 지원", task.FrequencyDaily, 2, 40, "x")
	long := mkTask("고객 문의 처리", "고객 문의 메일을 확인하고 분류하고 우선순위를 정하고 담당자에게 배정하고 답변을 작성하는 전체 프로세스", "고객 지원", task.FrequencyDaily, 1.5, 30, "y")

	res := Deduplicate([]task.Task{short, long}, DefaultOptions())
	if len(res.Tasks) != 1 {
		t.Fatalf("tasks: %d", len(res.Tasks))
	}
	got := res.Tasks[0]
	if got.Description != long.Description {
		t.Errorf("longer description should win, got %q", got.Description)
	}
	if got.TimeSpentHours != 1.5 {
		t.Errorf("winner fields should be preserved, got time %v", got.TimeSpentHours)
	}
	if diff := cmp.Diff([]string{"x", "y"}, got.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestPreferSecond(t *testing.T) {
	base := mkTask("t", "0123456789", "d", task.FrequencyDaily, 2, 10)
	tests := []struct {
		name   string
		mutate func(*task.Task)
		want   bool
	}{
		{"tie keeps first", func(*task.Task) {}, false},
		{"more time", func(s *task.Task) { s.TimeSpentHours = 3 }, true},
		{"slightly more time", func(s *task.Task) { s.TimeSpentHours = 2.1 }, false},
		{"more savings", func(s *task.Task) { s.EstimatedSavingsHours = 20 }, true},
		{"less time", func(s *task.Task) { s.TimeSpentHours = 1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := base.Clone()
			tt.mutate(&second)
			if got := preferSecond(base, second, 1.2); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeduplicate_TagCap(t *testing.T) {
	var a, b []string
	for i := 0; i < 8; i++ {
		a = append(a, fmt.Sprintf("a%d", i))
		b = append(b, fmt.Sprintf("b%d", i))
	}
	t1 := mkTask("same", "description one here", "d", task.FrequencyDaily, 1, 1, a...)
	t2 := mkTask("SAME", "description two here", "d", task.FrequencyDaily, 1, 1, b...)

	res := Deduplicate([]task.Task{t1, t2}, DefaultOptions())
	got := res.Tasks[0].Tags
	if len(got) != task.MaxTags {
		t.Fatalf("tags: got %d, want %d", len(got), task.MaxTags)
	}
	if got[7] != "a7" || got[8] != "b0" || got[9] != "b1" {
		t.Errorf("truncation should keep the first ten after union: %v", got)
	}
}

func TestDeduplicate_NoPairRemainsDuplicate(t *testing.T) {
	res := Deduplicate(workshopSample(), DefaultOptions())
	opts := DefaultOptions()
	for i := range res.Tasks {
		for j := i + 1; j < len(res.Tasks); j++ {
			if ok, _, _ := duplicate(res.Tasks[i], res.Tasks[j], opts); ok {
				t.Errorf("%q and %q still duplicate", res.Tasks[i].Title, res.Tasks[j].Title)
			}
		}
	}
}

func TestDeduplicate_DoesNotMutateInput(t *testing.T) {
	in := workshopSample()
	before := in[2].Tags[0]
	_ = Deduplicate(in, DefaultOptions())
	if len(in[2].Tags) != 1 || in[2].Tags[0] != before {
		t.Errorf("input tags changed: %v", in[2].Tags)
	}
}

func TestDeduplicate_Empty(t *testing.T) {
	res := Deduplicate(nil, DefaultOptions())
	if res.Tasks == nil || len(res.Tasks) != 0 {
		t.Errorf("tasks: %#v", res.Tasks)
	}
}

func TestSimilarity(t *testing.T) {
	if got := TitleSimilarity("Report", "  report "); got != 1 {
		t.Errorf("case/space-insensitive equality: %v", got)
	}
	if got := TitleSimilarity("", "x"); got != 0 {
		t.Errorf("empty title: %v", got)
	}
	if got := TitleSimilarity("고객 문의 메일 확인", "고객 문의 이메일 처리"); got != 0.75 {
		t.Errorf("title similarity: %v", got)
	}
	if got := DescriptionSimilarity("a b c", "a b c"); got != 0 {
		t.Errorf("single-rune words should be ignored: %v", got)
	}
	if got := DescriptionSimilarity("daily sales report", "daily sales summary"); got != 0.5 {
		t.Errorf("jaccard: %v", got)
	}
}
