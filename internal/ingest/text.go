package ingest

import (
	"context"
	"strings"
)

// TextParser handles plain text files and any text/* MIME type no other
// parser claimed.
type TextParser struct{}

func (t *TextParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".txt", ".text", ".log") {
		return true
	}
	return strings.HasPrefix(baseMIME(mimeType), "text/")
}

// Parse decodes UTF-8, dropping a byte-order mark and invalid sequences.
func (t *TextParser) Parse(_ context.Context, _ string, data []byte) (string, error) {
	return decodeText(data), nil
}

func decodeText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\r\n", "\n")
}
