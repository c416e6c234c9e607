package source

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// readXLSX reads the first sheet of an Office Open XML workbook.
func readXLSX(path string) ([][]domain.Cell, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	grid := make([][]domain.Cell, len(rows))
	for r, values := range rows {
		cells := make([]domain.Cell, len(values))
		for c, value := range values {
			cells[c] = xlsxCell(f, sheet, c, r, value)
		}
		grid[r] = cells
	}
	return grid, nil
}

// xlsxCell tags a formatted cell value using the cell's stored type.
func xlsxCell(f *excelize.File, sheet string, col, row int, value string) domain.Cell {
	if value == "" {
		return domain.EmptyCell()
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return domain.StringCell(value)
	}

	// Numeric cells are often stored without an explicit type attribute.
	typ, err := f.GetCellType(sheet, axis)
	if err != nil || (typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset) {
		return domain.StringCell(value)
	}

	raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.StringCell(value)
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.StringCell(value)
	}
	return domain.NumberCell(n)
}
