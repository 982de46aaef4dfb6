package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser handles HTML pages. Block elements start new lines, list items
// get a "- " prefix and table cells are joined with " | ".
type HTMLParser struct{}

func (h *HTMLParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".html", ".htm") {
		return true
	}
	switch baseMIME(mimeType) {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"ul": true, "caption": true, "thead": true, "tbody": true, "tfoot": true,
}

func (h *HTMLParser) Parse(_ context.Context, _ string, data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	doc.Find("script, style, noscript, template, head").Remove()

	var tb textBuilder
	tb.walk(doc.Find("body"))
	tb.breakLine()

	lines := tb.lines
	if title != "" && (len(lines) == 0 || lines[0] != title) {
		lines = append([]string{title}, lines...)
	}
	return strings.Join(lines, "\n"), nil
}

type textBuilder struct {
	lines []string
	cur   strings.Builder
	cells int
}

func (b *textBuilder) breakLine() {
	if line := strings.Join(strings.Fields(b.cur.String()), " "); line != "" {
		b.lines = append(b.lines, line)
	}
	b.cur.Reset()
}

func (b *textBuilder) walk(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case name == "#text":
			b.cur.WriteString(s.Text())
		case strings.HasPrefix(name, "#"):
			// comments, doctype
		case name == "br":
			b.breakLine()
		case name == "tr":
			b.breakLine()
			b.cells = 0
			b.walk(s)
			b.breakLine()
		case name == "td" || name == "th":
			if b.cells > 0 {
				b.cur.WriteString(" | ")
			}
			b.cells++
			b.walk(s)
		case name == "li":
			b.breakLine()
			b.cur.WriteString("- ")
			b.walk(s)
			b.breakLine()
		case blockElements[name]:
			b.breakLine()
			b.walk(s)
			b.breakLine()
		default:
			b.walk(s)
		}
	})
}
