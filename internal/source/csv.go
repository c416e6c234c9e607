package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a comma separated file. Cells are kept as text.
func readCSV(path string) ([][]domain.Cell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	var grid [][]domain.Cell
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		cells := make([]domain.Cell, len(record))
		for i, value := range record {
			cells[i] = domain.StringCell(value)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
