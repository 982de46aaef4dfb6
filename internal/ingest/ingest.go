// Package ingest turns uploaded workshop documents into plain text for the
// extraction prompt.
//
// Each supported format has its own Parser. The Extractor picks the first
// parser that claims a file by extension or MIME type and dispatches to it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when no parser handles a file.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrEmptyDocument is returned when a file parses to no text at all.
var ErrEmptyDocument = errors.New("document has no extractable text")

// Parser handles one document format.
type Parser interface {
	// CanHandle reports whether the parser supports the file.
	CanHandle(filename, mimeType string) bool

	// Parse returns the document's text.
	Parse(ctx context.Context, filename string, data []byte) (string, error)
}

// Extractor dispatches documents to the registered parsers.
type Extractor struct {
	parsers []Parser
}

// DefaultParsers returns every built-in parser in dispatch order. The generic
// text parser is last so specific formats win over text/* MIME types.
func DefaultParsers() []Parser {
	return []Parser{
		&DOCXParser{},
		&XLSXParser{},
		&HTMLParser{},
		&CSVParser{},
		&JSONParser{},
		&YAMLParser{},
		&MarkdownParser{},
		&TextParser{},
	}
}

// New creates an Extractor. With no parsers it uses DefaultParsers.
func New(parsers ...Parser) *Extractor {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	return &Extractor{parsers: parsers}
}

// Supports reports whether some parser handles the file.
func (e *Extractor) Supports(filename, mimeType string) bool {
	return e.parserFor(filename, mimeType) != nil
}

func (e *Extractor) parserFor(filename, mimeType string) Parser {
	for _, p := range e.parsers {
		if p.CanHandle(filename, mimeType) {
			return p
		}
	}
	return nil
}

// ExtractText returns the text content of one document.
func (e *Extractor) ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := e.parserFor(filename, mimeType)
	if p == nil {
		return "", fmt.Errorf("%s (%s): %w", filename, displayMIME(mimeType), ErrUnsupportedFormat)
	}
	text, err := p.Parse(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", filename, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", filename, ErrEmptyDocument)
	}
	return text, nil
}

var defaultExtractor = New()

// ExtractText runs the default Extractor.
func ExtractText(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	return defaultExtractor.ExtractText(ctx, filename, mimeType, data)
}

// Supported reports whether the default Extractor handles the file.
func Supported(filename, mimeType string) bool {
	return defaultExtractor.Supports(filename, mimeType)
}

func extOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func hasExt(filename string, exts ...string) bool {
	ext := extOf(filename)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// baseMIME lowercases a MIME type and drops its parameters.
func baseMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func displayMIME(mimeType string) string {
	if m := baseMIME(mimeType); m != "" {
		return m
	}
	return "unknown type"
}
