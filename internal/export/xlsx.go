// Package export writes grid views to spreadsheets.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bcgov/lcfs-portal/internal/columns"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheet = "Sheet1"
	pxPerChar    = 7.0
	maxSheetName = 31
)

// Rows converts a decoded list page into one map per row, keyed by the JSON
// field names the column definitions refer to.
func Rows(page any) ([]map[string]any, error) {
	raw, err := json.Marshal(page)
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}

	var envelope struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return envelope.Rows, nil
}

// XLSX writes the visible columns of defs, in order, and one line per row.
func XLSX(sheet string, defs []columns.ColumnDefinition, rows []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return nil, err
	}

	visible := make([]columns.ColumnDefinition, 0, len(defs))
	for _, def := range defs {
		if !def.Hide && def.Field != "" {
			visible = append(visible, def)
		}
	}
	if len(visible) == 0 {
		return nil, fmt.Errorf("no visible columns to export")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	// Add headers
	for i, def := range visible {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		header := def.HeaderName
		if header == "" {
			header = def.Field
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
		if def.Width != nil {
			name, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(sheet, name, name, *def.Width/pxPerChar); err != nil {
				return nil, err
			}
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(visible), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return nil, err
	}

	// Add data
	for r, row := range rows {
		for i, def := range visible {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(row[def.Field])); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue flattens nested values; excelize only takes scalars.
func cellValue(v any) any {
	switch v := v.(type) {
	case nil, string, bool, float64:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// sheetName drops the characters Excel rejects and truncates to its limit.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return defaultSheet
	}
	if len([]rune(s)) > maxSheetName {
		s = string([]rune(s)[:maxSheetName])
	}
	return s
}
