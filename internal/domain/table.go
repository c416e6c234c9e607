package domain

import (
	"path/filepath"
	"strconv"
	"strings"
)

// CellKind tags the type of value held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
)

// String returns the string representation of the CellKind.
func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	default:
		return "empty"
	}
}

// Cell is a loosely typed spreadsheet value.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

// EmptyCell returns a cell with no value.
func EmptyCell() Cell {
	return Cell{Kind: CellEmpty}
}

// StringCell returns a text cell. An empty string yields an empty cell.
func StringCell(s string) Cell {
	if s == "" {
		return EmptyCell()
	}
	return Cell{Kind: CellString, Str: s}
}

// NumberCell returns a numeric cell.
func NumberCell(n float64) Cell {
	return Cell{Kind: CellNumber, Num: n}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// Text coerces the cell to a string. Numbers use the shortest
// representation that round-trips ("3", "2.5").
func (c Cell) Text() string {
	switch c.Kind {
	case CellString:
		return c.Str
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Row maps column names to cell values.
type Row map[string]Cell

// Table is an ordered set of named columns and rows loaded from a
// spreadsheet. It is not modified after loading.
type Table struct {
	Path    string
	Columns []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Cell returns the value at the given row and column, or an empty cell
// when either is out of range.
func (t *Table) Cell(row int, column string) Cell {
	if row < 0 || row >= len(t.Rows) {
		return EmptyCell()
	}
	c, ok := t.Rows[row][column]
	if !ok {
		return EmptyCell()
	}
	return c
}

// Stem returns the source file name without directory and extension.
func (t *Table) Stem() string {
	return FileStem(t.Path)
}

// FileStem strips the directory and the last extension from path.
func FileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
