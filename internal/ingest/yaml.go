package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLParser handles .yaml and .yml files. Multi-document files produce one
// block per document separated by a blank line.
type YAMLParser struct{}

func (y *YAMLParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".yaml", ".yml") {
		return true
	}
	switch baseMIME(mimeType) {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return true
	}
	return false
}

func (y *YAMLParser) Parse(_ context.Context, _ string, data []byte) (string, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var blocks []string
	for docNum := 1; ; docNum++ {
		var doc any
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("invalid YAML (document %d): %w", docNum, err)
		}
		if doc == nil {
			continue
		}
		blocks = append(blocks, flattenToLines("", doc))
	}
	return strings.Join(blocks, "\n\n"), nil
}
