package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/extract"
)

const maxCellWidth = 40

// renderBar draws a text progress bar of the given width followed by the
// completed count and percentage.
func renderBar(completed, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	completed = min(max(completed, 0), total)

	filled := completed * width / total
	pct := completed * 100 / total
	return fmt.Sprintf("[green]%s[gray]%s[-] %d/%d (%d%%)",
		strings.Repeat("█", filled), strings.Repeat("░", width-filled), completed, total, pct)
}

// fillPreview replaces the contents of view with the header and first
// limit rows of table. The URL column is highlighted. It returns the URL
// column and its candidate count.
func fillPreview(view *tview.Table, table *domain.Table, limit int) (string, int) {
	view.Clear()

	column, ok := extract.FindURLColumn(table)
	candidates := 0
	if ok {
		candidates = len(extract.Candidates(table, column))
	}

	view.SetCell(0, 0, tview.NewTableCell("#").
		SetTextColor(tcell.ColorYellow).
		SetSelectable(false))
	for c, name := range table.Columns {
		color := tcell.ColorYellow
		if ok && name == column {
			color = tcell.ColorGreen
		}
		view.SetCell(0, c+1, tview.NewTableCell(tview.Escape(name)).
			SetTextColor(color).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}

	rows := min(max(limit, 0), table.Len())
	for r := 0; r < rows; r++ {
		view.SetCell(r+1, 0, tview.NewTableCell(fmt.Sprintf("%03d", r)).SetTextColor(tcell.ColorGray))
		for c, name := range table.Columns {
			view.SetCell(r+1, c+1, tview.NewTableCell(tview.Escape(table.Cell(r, name).Text())).
				SetMaxWidth(maxCellWidth).
				SetExpansion(1))
		}
	}

	return column, candidates
}

func previewSummary(table *domain.Table, column string, candidates int) string {
	if column == "" {
		return fmt.Sprintf("[yellow]%d rows, no column containing URLs found", table.Len())
	}
	return fmt.Sprintf("%d rows, column [green]%s[-] has %d valid links",
		table.Len(), tview.Escape(column), candidates)
}

func runSummary(run *domain.Run) string {
	color := "green"
	switch run.Status {
	case domain.RunStatusCancelled:
		color = "yellow"
	case domain.RunStatusFailed:
		color = "red"
	}
	msg := fmt.Sprintf("[%s]%s[-]: %d saved, %d failed of %d links",
		color, run.Status, run.SavedCount(), run.FailedCount(), run.Progress.Total)
	if run.Error != "" {
		msg += " - " + tview.Escape(run.Error)
	}
	return msg
}

// errorText maps start-up errors to the messages shown in the status bar.
func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingSource):
		return "Please select a spreadsheet first"
	case errors.Is(err, domain.ErrMissingDestination):
		return "Please select a download folder first"
	case errors.Is(err, domain.ErrConcurrentRun):
		return "A download is already in progress"
	default:
		return "Error: " + err.Error()
	}
}
