package source

import (
	"fmt"

	"github.com/extrame/xls"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// readXLS reads the first sheet of a legacy BIFF workbook.
func readXLS(path string) ([][]domain.Cell, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no readable sheet")
	}

	grid := make([][]domain.Cell, 0, int(sheet.MaxRow)+1)
	for r := 0; r <= int(sheet.MaxRow); r++ {
		row := sheetRow(sheet, r)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		last := row.LastCol()
		cells := make([]domain.Cell, 0, last)
		for c := 0; c < last; c++ {
			cells = append(cells, domain.StringCell(row.Col(c)))
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// sheetRow returns row r, or nil when the sheet holds no record for it.
// WorkSheet.Row dereferences the missing row, so that panic is the signal.
func sheetRow(sheet *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(r)
}
