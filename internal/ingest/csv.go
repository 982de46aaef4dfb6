package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVParser handles .csv and .tsv files. Each record becomes one line with
// cells joined by " | ".
type CSVParser struct{}

func (c *CSVParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".csv", ".tsv") {
		return true
	}
	switch baseMIME(mimeType) {
	case "text/csv", "text/tab-separated-values":
		return true
	}
	return false
}

func (c *CSVParser) Parse(_ context.Context, filename string, data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader([]byte(decodeText(data))))
	if extOf(filename) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("reading csv: %w", err)
	}

	lines := make([]string, 0, len(records))
	for _, row := range records {
		if line := joinRow(row); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// joinRow joins cells with " | " after trimming trailing empty cells.
func joinRow(row []string) string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	cells := make([]string, end)
	for i := range cells {
		cells[i] = strings.TrimSpace(row[i])
	}
	return strings.Join(cells, " | ")
}
