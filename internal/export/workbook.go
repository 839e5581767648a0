package export

import (
	"fmt"
	"math"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/xuri/excelize/v2"
)

// Workbook is one kind's tables rendered as an .xlsx file.
type Workbook struct {
	Kind   core.Kind
	Sheets []string
	Data   []byte
}

// FileName is the download name of the workbook.
func (w Workbook) FileName() string {
	return string(w.Kind) + ".xlsx"
}

// Workbooks renders one workbook per kind, in order of first appearance.
// The first table of a kind fills the sheet named after the kind; further
// tables of the same kind become sheets kind_2, kind_3, ...
func Workbooks(tables []core.Table) ([]Workbook, error) {
	var order []core.Kind
	byKind := make(map[core.Kind][]core.Table)
	for _, t := range tables {
		if _, seen := byKind[t.Kind]; !seen {
			order = append(order, t.Kind)
		}
		byKind[t.Kind] = append(byKind[t.Kind], t)
	}

	out := make([]Workbook, 0, len(order))
	for _, kind := range order {
		wb, err := renderWorkbook(kind, byKind[kind])
		if err != nil {
			return nil, fmt.Errorf("render %s workbook: %w", kind, err)
		}
		out = append(out, wb)
	}
	return out, nil
}

func renderWorkbook(kind core.Kind, tables []core.Table) (Workbook, error) {
	f := excelize.NewFile()
	defer f.Close()

	wb := Workbook{Kind: kind}
	for i, t := range tables {
		name := sheetName(kind, i)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return Workbook{}, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return Workbook{}, err
		}
		if err := writeSheet(f, name, t); err != nil {
			return Workbook{}, fmt.Errorf("sheet %s: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, name)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Workbook{}, err
	}
	wb.Data = buf.Bytes()
	return wb, nil
}

// sheetName keeps within the 31 character sheet name limit.
func sheetName(kind core.Kind, i int) string {
	base := string(kind)
	if base == "" {
		base = "Sheet"
	}
	suffix := ""
	if i > 0 {
		suffix = fmt.Sprintf("_%d", i+1)
	}
	if len(base)+len(suffix) > 31 {
		base = base[:31-len(suffix)]
	}
	return base + suffix
}

func writeSheet(f *excelize.File, sheet string, t core.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for c, col := range t.Columns {
			cells[c] = cellValue(row.Get(col))
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// cellValue maps a Value to what excelize stores natively.
// Absent and null cells stay blank.
func cellValue(v core.Value) any {
	switch v.Type() {
	case core.TypeText:
		s, _ := v.AsText()
		return s
	case core.TypeNumber:
		n, _ := v.AsNumber()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return v.String()
		}
		return n
	case core.TypeBool:
		b, _ := v.AsBool()
		return b
	}
	return nil
}
