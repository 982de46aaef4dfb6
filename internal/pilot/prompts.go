package pilot

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/taskmine/internal/pipeline"
)

func manualInputPrompt(p Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 %s입니다. %s 팀의 %s로 일하고 있습니다.\n", p.Name, orDash(p.Team), orDash(p.Role))
	fmt.Fprintf(&b, "담당 업무 영역: %s\n", strings.Join(p.Domains, ", "))
	if p.TechLiteracy != "" {
		fmt.Fprintf(&b, "디지털 도구 숙련도: %s\n", p.TechLiteracy)
	}
	if p.WorkNotes != "" {
		fmt.Fprintf(&b, "\n업무 메모:\n%s\n", strings.TrimSpace(p.WorkNotes))
	}
	writeList(&b, "평소 불편한 점", p.PainPoints)
	writeList(&b, "워크샵에 기대하는 점", p.Expectations)
	b.WriteString(`
자동화 워크샵의 "직접 입력" 칸에 적을 내용을 작성하세요.
반복적으로 하는 업무 3~5개를 평소 말투 그대로 적고, 각 업무에 걸리는 시간과 빈도(예: 매일 30분, 주 1회 2시간)를 포함하세요.
설명이나 머리말 없이 입력할 내용만 출력하세요.`)
	return b.String()
}

func feedbackPrompt(p Persona, res *pipeline.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 %s(%s, %s)입니다. 방금 워크샵 도구가 당신의 입력에서 아래 업무를 추출했습니다.\n\n", p.Name, orDash(p.Role), orDash(p.TechLiteracy))
	if len(res.Tasks) == 0 {
		b.WriteString("(추출된 업무 없음)\n")
	}
	for i, t := range res.Tasks {
		fmt.Fprintf(&b, "%d. [%s] %s: %s (%s, 1회 %.1f시간, 자동화 가능성 %s)\n",
			i+1, t.Domain, t.Title, t.Description, t.Frequency, t.TimeSpentHours, t.AutomationPotential)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(&b, "\n도구가 표시한 경고:\n- %s\n", strings.Join(res.Warnings, "\n- "))
	}
	b.WriteString(`
실제 사용자 입장에서 결과를 평가하세요. 아래 형식의 JSON 배열 하나만 출력하세요.
[{"satisfaction": 1~5 사이 정수, "painPoints": ["불편했던 점"], "suggestions": ["개선 제안"]}]`)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
