// Package extract finds the URL column of a table and the rows worth downloading.
package extract

import (
	"strings"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// Column name fragments that mark a URL column. The CJK entries mean
// "link" and "address".
var urlColumnHints = []string{"url", "链接", "地址"}

// missingMarkers are textual placeholders spreadsheet tools write for
// absent values.
var missingMarkers = map[string]bool{
	"nan":  true,
	"NaN":  true,
	"None": true,
	"NULL": true,
	"null": true,
	"<NA>": true,
	"#N/A": true,
	"N/A":  true,
}

// FindURLColumn returns the first column, in column order, whose name
// contains one of the URL hints (case-insensitive).
func FindURLColumn(table *domain.Table) (string, bool) {
	for _, col := range table.Columns {
		lower := strings.ToLower(col)
		for _, hint := range urlColumnHints {
			if strings.Contains(lower, hint) {
				return col, true
			}
		}
	}
	return "", false
}

// Candidates returns the rows whose cell under column holds an http(s)
// URL, in row order, with their original row indices.
func Candidates(table *domain.Table, column string) []domain.Candidate {
	var out []domain.Candidate
	for i := range table.Rows {
		url, ok := ValidURL(table.Cell(i, column))
		if !ok {
			continue
		}
		out = append(out, domain.Candidate{RowIndex: i, URL: url})
	}
	return out
}

// ValidURL coerces a cell to trimmed text and accepts it when it starts
// with exactly "http://" or "https://".
func ValidURL(cell domain.Cell) (string, bool) {
	s := strings.TrimSpace(cell.Text())
	if s == "" || missingMarkers[s] {
		return "", false
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", false
	}
	return s, true
}

// Select finds the URL column and its candidates, returning
// domain.ErrNoURLColumn or domain.ErrNoValidLinks when either is missing.
func Select(table *domain.Table) (string, []domain.Candidate, error) {
	column, ok := FindURLColumn(table)
	if !ok {
		return "", nil, domain.ErrNoURLColumn
	}
	candidates := Candidates(table, column)
	if len(candidates) == 0 {
		return column, nil, domain.ErrNoValidLinks
	}
	return column, candidates, nil
}
