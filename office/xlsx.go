package office

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/lmao/core"
	"github.com/xuri/excelize/v2"
)

// ExtractXLSX returns one table per worksheet in workbook order. Rows are
// padded to the widest row of their sheet. Cells keep their type: numbers
// become float64, booleans bool, empty cells nil and formulas their
// "=..." source text. Numbers whose display format is not plain numeric
// (dates, currency, percentages) are kept as the formatted text.
func ExtractXLSX(filePath string) (core.DocumentContent, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return core.DocumentContent{}, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	tables := make([]core.SheetTable, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := readSheet(f, sheet)
		if err != nil {
			return core.DocumentContent{}, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		tables = append(tables, core.SheetTable{sheet: rows})
	}
	return core.DocumentContent{Table: tables}, nil
}

func readSheet(f *excelize.File, sheet string) ([][]any, error) {
	display, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	width := 0
	for _, row := range display {
		width = max(width, len(row))
	}
	rows := make([][]any, len(display))
	for r := range display {
		rows[r] = make([]any, width)
		for c := 0; c < width; c++ {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			value, err := cellValue(f, sheet, cell, cellAt(display, r, c), cellAt(raw, r, c))
			if err != nil {
				return nil, err
			}
			rows[r][c] = value
		}
	}
	return rows, nil
}

func cellValue(f *excelize.File, sheet, cell, text, raw string) (any, error) {
	formula, err := f.GetCellFormula(sheet, cell)
	if err != nil {
		return nil, err
	}
	if formula != "" {
		return "=" + formula, nil
	}
	if text == "" {
		return nil, nil
	}

	kind, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch kind {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(text, "TRUE"), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		// Digit grouping is still a plain number.
		if _, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64); err != nil {
			return text, nil
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	}
	return text, nil
}

func cellAt(rows [][]string, r, c int) string {
	if r >= len(rows) || c >= len(rows[r]) {
		return ""
	}
	return rows[r][c]
}
