package pilot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// topPainPoints caps the pain point ranking in a report.
const topPainPoints = 5

// PainPointCount is one entry of the pain point ranking.
type PainPointCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Report aggregates a pilot run.
type Report struct {
	GeneratedAt      time.Time        `json:"generatedAt"`
	Rows             []Row            `json:"rows"`
	Succeeded        int              `json:"succeeded"`
	Failed           int              `json:"failed"`
	MeanSatisfaction float64          `json:"meanSatisfaction"`
	Satisfaction     map[int]int      `json:"satisfaction"`
	TotalTasks       int              `json:"totalTasks"`
	TotalRejected    int              `json:"totalRejected"`
	TopPainPoints    []PainPointCount `json:"topPainPoints"`
}

// BuildReport aggregates rows in the given order. Mean satisfaction only
// counts personas that returned feedback. Pain points are compared after
// trimming and case folding; the first spelling seen is reported.
func BuildReport(rows []Row, now time.Time) *Report {
	r := &Report{
		GeneratedAt:   now,
		Rows:          rows,
		Satisfaction:  map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		TopPainPoints: []PainPointCount{},
	}

	counts := map[string]*PainPointCount{}
	var order []string
	scored, sum := 0, 0
	for _, row := range rows {
		r.TotalTasks += row.Tasks
		r.TotalRejected += row.Rejected
		if row.Failed() {
			r.Failed++
		} else {
			r.Succeeded++
		}
		if row.Feedback == nil {
			continue
		}
		scored++
		sum += row.Feedback.Satisfaction
		r.Satisfaction[row.Feedback.Satisfaction]++
		for _, pp := range row.Feedback.PainPoints {
			key := strings.ToLower(strings.TrimSpace(pp))
			if key == "" {
				continue
			}
			c, ok := counts[key]
			if !ok {
				c = &PainPointCount{Text: strings.TrimSpace(pp)}
				counts[key] = c
				order = append(order, key)
			}
			c.Count++
		}
	}
	if scored > 0 {
		r.MeanSatisfaction = math.Round(float64(sum)/float64(scored)*100) / 100
	}

	ranked := make([]PainPointCount, 0, len(order))
	for _, k := range order {
		ranked = append(ranked, *counts[k])
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if len(ranked) > topPainPoints {
		ranked = ranked[:topPainPoints]
	}
	r.TopPainPoints = ranked
	return r
}

// RenderMarkdown formats the report for a pilot review document.
func RenderMarkdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# 페르소나 파일럿 결과\n\n")
	b.WriteString(fmt.Sprintf("생성 시각: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	b.WriteString("## 요약\n\n")
	b.WriteString(fmt.Sprintf("- 페르소나: %d명 (성공 %d, 실패 %d)\n", len(r.Rows), r.Succeeded, r.Failed))
	b.WriteString(fmt.Sprintf("- 추출된 업무: %d건 (스키마 탈락 %d건)\n", r.TotalTasks, r.TotalRejected))
	b.WriteString(fmt.Sprintf("- 평균 만족도: %.2f / 5\n", r.MeanSatisfaction))
	b.WriteString("- 만족도 분포:")
	for score := 5; score >= 1; score-- {
		b.WriteString(fmt.Sprintf(" %d점 %d명", score, r.Satisfaction[score]))
		if score > 1 {
			b.WriteString(",")
		}
	}
	b.WriteString("\n\n")

	b.WriteString("## 주요 불편 사항\n\n")
	if len(r.TopPainPoints) == 0 {
		b.WriteString("- (없음)\n")
	}
	for _, pp := range r.TopPainPoints {
		b.WriteString(fmt.Sprintf("- %s (%d명)\n", pp.Text, pp.Count))
	}
	b.WriteString("\n")

	b.WriteString("## 페르소나별 결과\n\n")
	b.WriteString("| 페르소나 | 역할 | 업무 | 탈락 | 만족도 | 소요(초) | 상태 |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, row := range r.Rows {
		score, state := "-", "성공"
		if row.Feedback != nil {
			score = fmt.Sprintf("%d", row.Feedback.Satisfaction)
		}
		if row.Failed() {
			state = "실패"
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %s | %.2f | %s |\n",
			cell(row.Persona.Name), cell(row.Persona.Role), row.Tasks, row.Rejected, score, row.Duration, state))
	}

	for _, row := range r.Rows {
		b.WriteString(fmt.Sprintf("\n### %s (%s)\n\n", row.Persona.Name, row.Persona.ID))
		if row.Failed() {
			b.WriteString(fmt.Sprintf("- 오류: %s\n", row.Error))
		}
		for _, w := range row.Warnings {
			b.WriteString(fmt.Sprintf("- 경고: %s\n", w))
		}
		if row.Feedback == nil {
			continue
		}
		for _, pp := range row.Feedback.PainPoints {
			b.WriteString(fmt.Sprintf("- 불편: %s\n", pp))
		}
		for _, s := range row.Feedback.Suggestions {
			b.WriteString(fmt.Sprintf("- 제안: %s\n", s))
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func cell(s string) string {
	return orDash(strings.NewReplacer("|", "/", "\n", " ").Replace(s))
}
