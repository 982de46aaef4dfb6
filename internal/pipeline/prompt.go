package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/hurttlocker/taskmine/internal/timehint"
)

//go:embed prompt.md
var defaultTemplate string

// DefaultTemplate returns the built-in extraction prompt.
func DefaultTemplate() string { return defaultTemplate }

// Template placeholders.
const (
	PlaceholderDomains     = "{domains}"
	PlaceholderDocuments   = "{documents}"
	PlaceholderManualInput = "{manualInput}"
	PlaceholderTimeHint    = "{timeHint}"
)

// emptySection stands in for a section with no content.
const emptySection = "(없음)"

// userInstruction is the user turn sent alongside the rendered system prompt.
const userInstruction = "위 정보를 바탕으로 업무를 추출하고 분류해주세요. JSON 배열 형식으로만 응답해주세요."

// LoadTemplate reads a prompt template from disk. The template must contain
// the documents placeholder; the others are optional.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	tmpl := string(data)
	if !strings.Contains(tmpl, PlaceholderDocuments) {
		return "", fmt.Errorf("prompt template %s has no %s placeholder", path, PlaceholderDocuments)
	}
	return tmpl, nil
}

// renderPrompt substitutes every placeholder occurrence.
func renderPrompt(tmpl string, req Request, hint timehint.Hint) string {
	orEmpty := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return emptySection
		}
		return s
	}

	domains := make([]string, 0, len(req.Domains))
	for _, d := range req.Domains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}

	var docs []string
	for i, d := range req.documents() {
		docs = append(docs, fmt.Sprintf("### 문서 %d: %s\n\n%s\n", i+1, d.Name, d.Content))
	}

	manual := ""
	if strings.TrimSpace(req.ManualInput) != "" {
		manual = "### 팀장 직접 입력 내용\n\n" + req.ManualInput + "\n"
	}

	r := strings.NewReplacer(
		PlaceholderDomains, orEmpty(strings.Join(domains, ", ")),
		PlaceholderDocuments, orEmpty(strings.Join(docs, "\n")),
		PlaceholderManualInput, orEmpty(manual),
		PlaceholderTimeHint, orEmpty(hint.PromptBlock()),
	)
	return r.Replace(tmpl)
}
