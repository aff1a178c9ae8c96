package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetRange is a 1-based inclusive cell range.
type sheetRange struct {
	startCol, startRow int
	endCol, endRow     int
}

// detectRange combines the sheet's declared dimension with the extent of the
// data actually present, so trailing header-less columns are never lost.
func detectRange(wb *excelize.File, sheet string, rows [][]string) sheetRange {
	rg := sheetRange{startCol: 1, startRow: 1, endRow: len(rows)}
	for _, r := range rows {
		if len(r) > rg.endCol {
			rg.endCol = len(r)
		}
	}

	dim, err := wb.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return rg
	}

	parts := strings.SplitN(dim, ":", 2)
	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return rg
	}
	rg.startCol, rg.startRow = c1, r1
	if len(parts) == 2 {
		if c2, r2, err := excelize.CellNameToCoordinates(parts[1]); err == nil {
			if c2 > rg.endCol {
				rg.endCol = c2
			}
			if r2 > rg.endRow {
				rg.endRow = r2
			}
		}
	}
	if rg.startCol > rg.endCol {
		rg.startCol = 1
	}
	return rg
}

// readSheet builds a dataset from one worksheet. Row 1 of the detected range
// is the header row; fully blank data rows are skipped.
func readSheet(wb *excelize.File, sheet string) (*Dataset, error) {
	display, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	raw, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rg := detectRange(wb, sheet, display)
	if rg.endCol == 0 || rg.startRow > len(display) {
		return nil, ErrEmptyFile
	}

	rawHeaders := make([]string, 0, rg.endCol-rg.startCol+1)
	for c := rg.startCol; c <= rg.endCol; c++ {
		rawHeaders = append(rawHeaders, at(display, rg.startRow-1, c-1))
	}
	headers := headerSet(rawHeaders, func(i int) string {
		name, err := excelize.ColumnNumberToName(rg.startCol + i)
		if err != nil {
			return "Column " + strconv.Itoa(rg.startCol+i)
		}
		return "Column " + name
	})

	var rows []Row
	for r := rg.startRow; r < len(display); r++ {
		row := make(Row)
		for i, h := range headers {
			col := rg.startCol + i
			text := at(display, r, col-1)
			if strings.TrimSpace(text) == "" {
				continue
			}
			row[h] = sheetCell(wb, sheet, col, r+1, text, at(raw, r, col-1))
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}

	return &Dataset{Headers: headers, Rows: rows, SheetName: sheet}, nil
}

// sheetCell classifies a non-empty cell as number or text. Numeric cells
// carry no type attribute in the sheet XML, so both Unset and Number count.
func sheetCell(wb *excelize.File, sheet string, col, row int, text, raw string) Cell {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return TextCell(text)
	}

	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return TextCell(text)
	}
	typ, err := wb.GetCellType(sheet, axis)
	if err != nil {
		return TextCell(text)
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return NumberCell(n, text)
	default:
		return TextCell(text)
	}
}

func at(grid [][]string, r, c int) string {
	if r < 0 || r >= len(grid) || c < 0 || c >= len(grid[r]) {
		return ""
	}
	return grid[r][c]
}
