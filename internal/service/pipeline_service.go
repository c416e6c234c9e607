package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/extract"
	"github.com/iconidentify/sheetgrab/internal/progress"
	"github.com/iconidentify/sheetgrab/internal/source"
)

// PipelineService wires the spreadsheet reader, the URL extractor and the
// executor together. It allows one run at a time.
type PipelineService struct {
	loader   source.Loader
	executor *Executor
	logger   *slog.Logger
	running  atomic.Bool
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(loader source.Loader, executor *Executor, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		loader:   loader,
		executor: executor,
		logger:   logger,
	}
}

// IsRunning reports whether a run currently holds the pipeline.
func (s *PipelineService) IsRunning() bool {
	return s.running.Load()
}

// Preview loads the spreadsheet without downloading anything.
func (s *PipelineService) Preview(path string) (*domain.Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.ErrMissingSource
	}
	return s.loader.Load(path)
}

// RunHandle tracks a run started by Start.
type RunHandle struct {
	urlColumn  string
	candidates []domain.Candidate
	cancel     context.CancelFunc
	done       chan struct{}

	outcomes []domain.Outcome
	err      error
}

// URLColumn returns the column the links were read from.
func (h *RunHandle) URLColumn() string { return h.urlColumn }

// Candidates returns the rows that will be attempted, in order.
func (h *RunHandle) Candidates() []domain.Candidate {
	return append([]domain.Candidate(nil), h.candidates...)
}

// Cancel asks the run to stop before its next item.
func (h *RunHandle) Cancel() { h.cancel() }

// Done is closed when the run has finished.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes and returns its outcomes. The error
// is non-nil only when the run was cancelled.
func (h *RunHandle) Wait() ([]domain.Outcome, error) {
	<-h.done
	return h.outcomes, h.err
}

// Start validates the inputs, loads the spreadsheet and extracts the
// candidates on the calling goroutine, then downloads on a new goroutine.
// Errors that prevent the loop from starting are returned here. ctx bounds
// the whole run, not just this call.
func (s *PipelineService) Start(ctx context.Context, sourcePath, destDir string, sink progress.Sink) (*RunHandle, error) {
	if sink == nil {
		sink = progress.Nop{}
	}

	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrConcurrentRun
	}
	release := true
	defer func() {
		if release {
			s.running.Store(false)
		}
	}()

	if strings.TrimSpace(sourcePath) == "" {
		return nil, domain.ErrMissingSource
	}
	if strings.TrimSpace(destDir) == "" {
		return nil, domain.ErrMissingDestination
	}

	sink.Report("Reading spreadsheet...")
	table, err := s.loader.Load(sourcePath)
	if err != nil {
		sink.Report(fmt.Sprintf("Failed to read file: %v", err))
		return nil, err
	}

	column, candidates, err := extract.Select(table)
	if err != nil {
		sink.Report(fmt.Sprintf("Error: %v", err))
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		err = fmt.Errorf("create destination: %w", err)
		sink.Report(fmt.Sprintf("Error: %v", err))
		return nil, err
	}

	s.logger.Info("download run starting",
		"source", sourcePath,
		"destination", destDir,
		"url_column", column,
		"candidates", len(candidates),
		"free_space", humanize.Bytes(uint64(freeDiskSpace(destDir))),
	)
	sink.Report(fmt.Sprintf("Found %d valid links, starting download...", len(candidates)))

	runCtx, cancel := context.WithCancel(ctx)
	h := &RunHandle{
		urlColumn:  column,
		candidates: candidates,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	release = false
	go func() {
		defer close(h.done)
		defer s.running.Store(false)
		defer cancel()

		outcomes, err := s.executor.Run(runCtx, candidates, destDir, table.Stem(), sink)
		if err == nil {
			sink.SetProgress(0, len(candidates))
		}
		h.outcomes, h.err = outcomes, err
	}()

	return h, nil
}

// StartDownload runs the pipeline to completion on the calling goroutine.
func (s *PipelineService) StartDownload(ctx context.Context, sourcePath, destDir string, sink progress.Sink) ([]domain.Outcome, error) {
	h, err := s.Start(ctx, sourcePath, destDir, sink)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}
