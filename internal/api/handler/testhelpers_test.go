package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRunManager is a test implementation of RunManager.
type mockRunManager struct {
	table      *domain.Table
	previewErr error

	submitted []service.SubmitRequest
	submitErr error

	runs      map[domain.RunID]*domain.Run
	order     []domain.RunID
	listErr   error
	getErr    error
	cancelErr error
	cancelled []domain.RunID
}

func newMockRunManager() *mockRunManager {
	return &mockRunManager{
		runs: make(map[domain.RunID]*domain.Run),
	}
}

func (m *mockRunManager) add(run *domain.Run) {
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
}

func (m *mockRunManager) Preview(path string) (*domain.Table, error) {
	if path == "" {
		return nil, domain.ErrMissingSource
	}
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	return m.table, nil
}

func (m *mockRunManager) Submit(ctx context.Context, req service.SubmitRequest) (*domain.Run, error) {
	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	run := domain.NewRun("run-1", req.Source, req.Destination)
	run.URLColumn = "url"
	run.Progress = domain.ProgressState{Total: 2}
	m.add(run)
	return run, nil
}

func (m *mockRunManager) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (m *mockRunManager) List(ctx context.Context, limit, offset int) ([]*domain.Run, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []*domain.Run
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	total := len(out)
	if offset >= len(out) {
		return []*domain.Run{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRunManager) Cancel(ctx context.Context, id domain.RunID) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	if _, ok := m.runs[id]; !ok {
		return domain.ErrRunNotFound
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

// finishedRun returns a completed run with one saved and one failed row.
func finishedRun(id domain.RunID) *domain.Run {
	run := domain.NewRun(id, "/data/orders.xlsx", "/data/out")
	run.URLColumn = "Image URL"
	run.Progress = domain.ProgressState{Completed: 2, Total: 2, Message: "Download complete! 2 files processed into /data/out"}
	run.MarkCompleted([]domain.Outcome{
		domain.Saved(domain.Candidate{RowIndex: 0, URL: "https://example.com/a.png"}, "/data/out/orders_000.png", "orders_000.png", 1024),
		domain.Failed(domain.Candidate{RowIndex: 3, URL: "https://example.com/gone"}, errors.New("unexpected status code: 404")),
	})
	run.StartedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return run
}
