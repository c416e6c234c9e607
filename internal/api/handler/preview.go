package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/extract"
)

const (
	defaultPreviewRows = 20
	maxPreviewRows     = 500
)

// PreviewHandler shows the contents of a spreadsheet before downloading.
type PreviewHandler struct {
	runs   RunManager
	logger *slog.Logger
}

// NewPreviewHandler creates a new preview handler.
func NewPreviewHandler(runs RunManager, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{
		runs:   runs,
		logger: logger,
	}
}

// PreviewRequest is the JSON request body for a preview.
type PreviewRequest struct {
	Path  string `json:"path"`
	Limit int    `json:"limit,omitempty"`
}

// PreviewResponse describes a loaded spreadsheet.
type PreviewResponse struct {
	Path       string                   `json:"path"`
	Stem       string                   `json:"stem"`
	Columns    []string                 `json:"columns"`
	Rows       []map[string]interface{} `json:"rows"`
	TotalRows  int                      `json:"total_rows"`
	URLColumn  string                   `json:"url_column,omitempty"`
	Candidates int                      `json:"candidates"`
}

// Preview handles POST /api/v1/preview
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Path = strings.TrimSpace(req.Path)
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPreviewRows
	}
	if limit > maxPreviewRows {
		limit = maxPreviewRows
	}

	table, err := h.runs.Preview(req.Path)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingSource):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrSourceRead):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("preview failed", "path", req.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to preview spreadsheet")
		}
		return
	}

	resp := PreviewResponse{
		Path:      table.Path,
		Stem:      table.Stem(),
		Columns:   table.Columns,
		Rows:      make([]map[string]interface{}, 0, min(limit, table.Len())),
		TotalRows: table.Len(),
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}

	for i := 0; i < table.Len() && i < limit; i++ {
		row := make(map[string]interface{}, len(table.Columns))
		for _, col := range table.Columns {
			row[col] = cellValue(table.Cell(i, col))
		}
		resp.Rows = append(resp.Rows, row)
	}

	if column, ok := extract.FindURLColumn(table); ok {
		resp.URLColumn = column
		resp.Candidates = len(extract.Candidates(table, column))
	}

	writeJSON(w, http.StatusOK, resp)
}

// cellValue maps a cell to its natural JSON value.
func cellValue(c domain.Cell) interface{} {
	switch c.Kind {
	case domain.CellNumber:
		return c.Num
	case domain.CellString:
		return c.Str
	default:
		return nil
	}
}
