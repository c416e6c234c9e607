package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/service"
)

// RunHandler handles download run requests.
type RunHandler struct {
	runs               RunManager
	defaultDestination string
	logger             *slog.Logger
}

// NewRunHandler creates a new run handler. defaultDestination is used when
// a submission leaves the destination empty.
func NewRunHandler(runs RunManager, defaultDestination string, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:               runs,
		defaultDestination: defaultDestination,
		logger:             logger,
	}
}

// SubmitRunRequest is the JSON request body for starting a run.
type SubmitRunRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// ProgressResponse is the live progress of a run.
type ProgressResponse struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Message   string  `json:"message,omitempty"`
}

// OutcomeResponse is the result of one row.
type OutcomeResponse struct {
	Row      int    `json:"row"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// RunResponse represents a run in list/get responses.
type RunResponse struct {
	RunID       string            `json:"run_id"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	Stem        string            `json:"stem"`
	URLColumn   string            `json:"url_column,omitempty"`
	Status      string            `json:"status"`
	Progress    ProgressResponse  `json:"progress"`
	Saved       int               `json:"saved"`
	Failed      int               `json:"failed"`
	Outcomes    []OutcomeResponse `json:"outcomes,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// ListRunsResponse is the JSON response for run listings.
type ListRunsResponse struct {
	Runs   []RunResponse `json:"runs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// CancelResponse is returned when a cancel request is accepted.
type CancelResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// Submit handles POST /api/v1/runs
func (h *RunHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Source = strings.TrimSpace(req.Source)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		req.Destination = h.defaultDestination
	}

	run, err := h.runs.Submit(r.Context(), service.SubmitRequest{
		Source:      req.Source,
		Destination: req.Destination,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingSource),
			errors.Is(err, domain.ErrMissingDestination):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrConcurrentRun):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrSourceRead),
			errors.Is(err, domain.ErrNoURLColumn),
			errors.Is(err, domain.ErrNoValidLinks):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("submit run failed", "source", req.Source, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start run")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, toRunResponse(run, false))
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	runs, total, err := h.runs.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	response := ListRunsResponse{
		Runs:   make([]RunResponse, 0, len(runs)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run, false))
	}

	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/runs/{runID}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	run, err := h.runs.Get(r.Context(), domain.RunID(runID))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run, true))
}

// Cancel handles DELETE /api/v1/runs/{runID}
func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	if err := h.runs.Cancel(r.Context(), domain.RunID(runID)); err != nil {
		switch {
		case errors.Is(err, domain.ErrRunNotFound):
			writeError(w, http.StatusNotFound, "run not found")
		case errors.Is(err, domain.ErrRunNotActive):
			writeError(w, http.StatusConflict, "run is not active")
		default:
			h.logger.Error("cancel run failed", "run_id", runID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to cancel run")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, CancelResponse{
		RunID:   runID,
		Message: "cancellation requested",
	})
}

func toRunResponse(run *domain.Run, withOutcomes bool) RunResponse {
	resp := RunResponse{
		RunID:       run.ID.String(),
		Source:      run.Source,
		Destination: run.Destination,
		Stem:        run.Stem,
		URLColumn:   run.URLColumn,
		Status:      string(run.Status),
		Progress: ProgressResponse{
			Completed: run.Progress.Completed,
			Total:     run.Progress.Total,
			Percent:   run.Progress.Fraction() * 100,
			Message:   run.Progress.Message,
		},
		Saved:      run.SavedCount(),
		Failed:     run.FailedCount(),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}

	if withOutcomes {
		resp.Outcomes = make([]OutcomeResponse, 0, len(run.Outcomes))
		for _, o := range run.Outcomes {
			resp.Outcomes = append(resp.Outcomes, OutcomeResponse{
				Row:      o.RowIndex,
				URL:      o.URL,
				Status:   string(o.Status),
				Filename: o.Filename,
				Path:     o.Path,
				Bytes:    o.Bytes,
				Reason:   o.Reason,
			})
		}
	}
	return resp
}
