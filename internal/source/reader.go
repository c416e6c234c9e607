// Package source loads spreadsheets into domain tables.
package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// Loader reads a tabular file.
type Loader interface {
	Load(path string) (*domain.Table, error)
}

// Reader implements Loader for xlsx, xls and csv files.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a new spreadsheet reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// Load reads the first sheet of the file at path. The first row is used
// as the header. Every failure is returned as a *domain.SourceError.
func (r *Reader) Load(path string) (table *domain.Table, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewSourceError(path, "stat file", err)
	}
	if info.IsDir() {
		return nil, domain.NewSourceError(path, "stat file", fmt.Errorf("is a directory"))
	}

	var parse func(string) ([][]domain.Cell, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		parse = readXLSX
	case ".xls":
		parse = readXLS
	case ".csv":
		parse = readCSV
	default:
		return nil, domain.NewSourceError(path, "detect format", domain.ErrUnsupportedFormat)
	}

	// Third-party parsers panic on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = domain.NewSourceError(path, "parse", fmt.Errorf("parser panic: %v", rec))
		}
	}()

	grid, err := parse(path)
	if err != nil {
		return nil, domain.NewSourceError(path, "parse", err)
	}

	table = buildTable(path, grid)
	r.logger.Debug("spreadsheet loaded",
		"path", path,
		"columns", len(table.Columns),
		"rows", len(table.Rows),
	)
	return table, nil
}

// buildTable turns a raw grid into a table, using the first row as header.
func buildTable(path string, grid [][]domain.Cell) *domain.Table {
	grid = trimTrailingEmpty(grid)

	table := &domain.Table{Path: path}
	if len(grid) == 0 {
		return table
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	table.Columns = headerNames(grid[0], width)
	table.Rows = make([]domain.Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(domain.Row, width)
		for i, name := range table.Columns {
			if i < len(cells) {
				row[name] = cells[i]
			} else {
				row[name] = domain.EmptyCell()
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// headerNames names blank headers "Unnamed: N" and suffixes duplicates
// with ".1", ".2", ... so every column name is unique.
func headerNames(header []domain.Cell, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i].Text())
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for seen[name] > 0 {
			name = base + "." + strconv.Itoa(seen[base])
			seen[base]++
		}
		seen[name]++
		names[i] = name
	}
	return names
}

func trimTrailingEmpty(grid [][]domain.Cell) [][]domain.Cell {
	end := len(grid)
	for end > 0 && rowIsEmpty(grid[end-1]) {
		end--
	}
	return grid[:end]
}

func rowIsEmpty(row []domain.Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
