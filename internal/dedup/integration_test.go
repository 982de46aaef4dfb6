package dedup

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hurttlocker/taskmine/internal/task"
)

func countContaining(warnings []string, substr string) int {
	n := 0
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			n++
		}
	}
	return n
}

func TestValidateIntegration_UnknownDomainKeepsTask(t *testing.T) {
	tasks := []task.Task{
		mkTask("급여 정산", "매월 직원 급여를 계산하고 정산합니다.", "고객 지원", task.FrequencyMonthly, 3, 10),
		mkTask("채용 공고", "채용 공고를 작성하고 게시합니다 매번.", "인사", task.FrequencyAdHoc, 1, 2),
	}
	warnings := ValidateIntegration(tasks, []string{"고객지원", "인사"}, DefaultOptions())

	if n := countContaining(warnings, "not a declared workshop domain"); n != 1 {
		t.Fatalf("unknown-domain warnings: got %d in %v", n, warnings)
	}
	if n := countContaining(warnings, `(closest: "고객지원")`); n != 1 {
		t.Errorf("closest domain hint missing: %v", warnings)
	}
	if n := countContaining(warnings, `declared domain "고객지원" has no tasks`); n != 1 {
		t.Errorf("empty domain warning missing: %v", warnings)
	}
	if len(tasks) != 2 {
		t.Error("tasks must not be dropped")
	}
}

func TestValidateIntegration_DuplicateIDs(t *testing.T) {
	a := mkTask("하나", "첫 번째 업무에 대한 설명입니다.", "운영", task.FrequencyDaily, 1, 1)
	b := mkTask("둘", "두 번째 업무에 대한 설명입니다.", "운영", task.FrequencyWeekly, 1, 1)
	a.ID, b.ID = "task-1", "task-1"

	warnings := ValidateIntegration([]task.Task{a, b}, []string{"운영"}, DefaultOptions())
	if n := countContaining(warnings, `task id "task-1" is used by 2 tasks`); n != 1 {
		t.Fatalf("duplicate id warnings: %v", warnings)
	}
}

func TestValidateIntegration_OverFragmentedDomain(t *testing.T) {
	var tasks []task.Task
	for i := 1; i <= 12; i++ {
		tasks = append(tasks, mkTask(
			fmt.Sprintf("고객 지원 업무 %d", i),
			fmt.Sprintf("고객 지원 관련 업무 %d번입니다.", i),
			"고객 지원", task.FrequencyDaily, 1, 10))
	}
	warnings := ValidateIntegration(tasks, []string{"고객 지원"}, DefaultOptions())
	if n := countContaining(warnings, `domain "고객 지원" has 12 tasks`); n != 1 {
		t.Fatalf("over-fragmentation warning missing: %v", warnings)
	}
	if n := countContaining(warnings, "possible duplicate"); n != 0 {
		t.Errorf("titles above the merge threshold are not near-misses: %v", warnings)
	}
}

func TestValidateIntegration_SuspiciousPairs(t *testing.T) {
	res := Deduplicate(workshopSample(), DefaultOptions())
	warnings := ValidateIntegration(res.Tasks, []string{"고객 지원", "마케팅", "데이터 분석", "운영"}, DefaultOptions())

	if n := countContaining(warnings, `possible duplicate: "고객 문의 메일 확인" and "고객 문의 이메일 처리"`); n != 1 {
		t.Fatalf("suspicious pair warning missing: %v", warnings)
	}
	if n := countContaining(warnings, "not a declared"); n != 0 {
		t.Errorf("unexpected domain warnings: %v", warnings)
	}
}

func TestValidateIntegration_CapsSuspiciousPairs(t *testing.T) {
	var tasks []task.Task
	for _, title := range []string{"abcdef", "abcdxy", "abcdzz", "abcdqq", "abcdww"} {
		tasks = append(tasks, mkTask(title, "same domain near miss titles", "d", task.FrequencyDaily, 1, 1))
	}
	pairs := SuspiciousPairs(tasks, DefaultOptions())
	if len(pairs) <= 5 {
		t.Fatalf("fixture should produce more than 5 pairs, got %d", len(pairs))
	}
	warnings := ValidateIntegration(tasks, []string{"d"}, DefaultOptions())
	if n := countContaining(warnings, "possible duplicate"); n != 5 {
		t.Errorf("possible duplicate warnings: got %d, want 5", n)
	}
}

func TestProcess_NoDeclaredDomains(t *testing.T) {
	out := Process(workshopSample(), nil, DefaultOptions())
	if len(out.Tasks) != 7 {
		t.Fatalf("tasks: %d", len(out.Tasks))
	}
	if n := countContaining(out.Warnings, "not a declared"); n != 0 {
		t.Errorf("no declared domains means no domain warnings: %v", out.Warnings)
	}
	if len(out.Merges) != 1 {
		t.Errorf("merges: %+v", out.Merges)
	}
}
