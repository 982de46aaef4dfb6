package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownParser handles .md files. YAML front matter is kept as
// "key: value" lines ahead of the body.
type MarkdownParser struct{}

func (m *MarkdownParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".md", ".markdown") {
		return true
	}
	return baseMIME(mimeType) == "text/markdown"
}

func (m *MarkdownParser) Parse(_ context.Context, _ string, data []byte) (string, error) {
	meta, body := stripFrontMatter(decodeText(data))
	if len(meta) == 0 {
		return body, nil
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, meta[k])
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(body))
	return b.String(), nil
}

// stripFrontMatter splits "---" delimited YAML front matter from the body.
// Front matter that is not a YAML mapping is left in the body.
func stripFrontMatter(content string) (map[string]string, string) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return nil, content
	}
	rest := trimmed[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, content
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil || len(fm) == 0 {
		return nil, content
	}

	meta := make(map[string]string, len(fm))
	for k, v := range fm {
		flattenValue(k, v, meta)
	}
	return meta, rest[idx+4:]
}
