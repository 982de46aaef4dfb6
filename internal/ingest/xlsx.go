package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser handles Office Open XML workbooks. Every non-empty sheet
// renders as a "[Sheet]" header followed by one " | " joined line per row.
type XLSXParser struct{}

func (x *XLSXParser) CanHandle(filename, mimeType string) bool {
	if hasExt(filename, ".xlsx", ".xlsm") {
		return true
	}
	return strings.Contains(baseMIME(mimeType), "spreadsheetml")
}

func (x *XLSXParser) Parse(ctx context.Context, _ string, data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		var lines []string
		for _, row := range rows {
			if line := joinRow(row); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		blocks = append(blocks, "["+sheet+"]\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n"), nil
}
