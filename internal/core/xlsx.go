package core

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// parseSpreadsheet reads the first sheet of an xlsx workbook.
//
// The first non-blank row is the header. Every data row carries every column;
// cells the sheet leaves out read as empty text so row shape stays uniform.
// Fully blank data rows are skipped. When the sheet has no data rows the
// columns are empty as well, since there is no row to take keys from.
func parseSpreadsheet(data []byte) ([]string, []Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	sheet := sheets[0]

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sheet %q: %v", ErrUnreadableFile, sheet, err)
	}

	headerAt := -1
	width := 0
	for i, cells := range grid {
		if headerAt < 0 && !isBlankRecord(cells) {
			headerAt = i
		}
		if headerAt >= 0 {
			width = max(width, len(cells))
		}
	}
	if headerAt < 0 {
		return nil, nil, nil
	}

	header := make([]string, width)
	copy(header, grid[headerAt])
	columns := uniqueHeaders(header)

	var rows []Row
	for i := headerAt + 1; i < len(grid); i++ {
		cells := grid[i]
		if isBlankRecord(cells) {
			continue
		}

		row := make(Row, width)
		for j, col := range columns {
			if j >= len(cells) {
				row[col] = Text("")
				continue
			}
			row[col] = spreadsheetValue(f, sheet, j+1, i+1, cells[j])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil, nil
	}
	return columns, rows, nil
}

// spreadsheetValue types a raw cell string using the cell's stored type.
// Untyped cells are numbers in OOXML; they fall back to text when the raw
// value does not parse.
func spreadsheetValue(f *excelize.File, sheet string, col, row int, raw string) Value {
	if raw == "" {
		return Text("")
	}

	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Text(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return Text(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return Bool(raw == "1" || raw == "TRUE" || raw == "true")
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return Number(n)
		}
	}
	return Text(raw)
}

func isBlankRecord(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
