package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/progress"
	"github.com/iconidentify/sheetgrab/internal/repository"
)

// SubmitRequest describes a run to start.
type SubmitRequest struct {
	Source      string
	Destination string
	// Sink optionally receives the run's notifications in addition to
	// the run record.
	Sink progress.Sink
}

// RunService starts pipeline runs and keeps their history.
type RunService struct {
	pipeline *PipelineService
	repo     repository.RunRepository
	logger   *slog.Logger

	mu     sync.Mutex
	active map[domain.RunID]*activeRun
	// wg tracks the goroutines that persist finished runs.
	wg sync.WaitGroup
}

type activeRun struct {
	run    *domain.Run // guarded by RunService.mu
	handle *RunHandle
	done   chan struct{}
}

// NewRunService creates a new run service.
func NewRunService(pipeline *PipelineService, repo repository.RunRepository, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		pipeline: pipeline,
		repo:     repo,
		logger:   logger,
		active:   make(map[domain.RunID]*activeRun),
	}
}

// Preview loads the spreadsheet without downloading anything.
func (s *RunService) Preview(path string) (*domain.Table, error) {
	return s.pipeline.Preview(path)
}

// Submit starts a tracked run and returns a snapshot of its record.
// Runs that fail before the download loop starts are stored as failed
// and their error is returned. ErrConcurrentRun and missing inputs are
// returned without storing anything.
func (s *RunService) Submit(ctx context.Context, req SubmitRequest) (*domain.Run, error) {
	id := domain.RunID(uuid.New().String())
	run := domain.NewRun(id, req.Source, req.Destination)
	tracker := &trackingSink{mu: &s.mu, run: run}

	var sink progress.Sink = tracker
	if req.Sink != nil {
		sink = progress.Multi{tracker, req.Sink}
	}

	// The run outlives the request that submitted it.
	handle, err := s.pipeline.Start(context.WithoutCancel(ctx), req.Source, req.Destination, sink)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentRun) ||
			errors.Is(err, domain.ErrMissingSource) ||
			errors.Is(err, domain.ErrMissingDestination) {
			return nil, err
		}

		s.mu.Lock()
		run.MarkFailed(err.Error())
		snapshot := run.Clone()
		s.mu.Unlock()

		if saveErr := s.repo.Save(ctx, snapshot); saveErr != nil {
			s.logger.Warn("failed to persist run", "run_id", id, "error", saveErr)
		}
		s.logger.Info("run failed to start", "run_id", id, "error", err)
		return nil, err
	}

	ar := &activeRun{run: run, handle: handle, done: make(chan struct{})}

	s.mu.Lock()
	run.URLColumn = handle.URLColumn()
	run.Progress.Total = len(handle.Candidates())
	s.active[id] = ar
	snapshot := run.Clone()
	s.mu.Unlock()

	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.logger.Warn("failed to persist run", "run_id", id, "error", err)
	}
	s.logger.Info("run started", "run_id", id, "source", req.Source, "candidates", snapshot.Progress.Total)

	s.wg.Add(1)
	go s.track(ar)

	return snapshot, nil
}

// track waits for a run and stores its final record.
func (s *RunService) track(ar *activeRun) {
	defer s.wg.Done()
	defer close(ar.done)

	outcomes, err := ar.handle.Wait()

	s.mu.Lock()
	switch {
	case err == nil:
		ar.run.MarkCompleted(outcomes)
	case errors.Is(err, context.Canceled):
		ar.run.MarkCancelled(outcomes)
	default:
		ar.run.Outcomes = outcomes
		ar.run.MarkFailed(err.Error())
	}
	snapshot := ar.run.Clone()
	s.mu.Unlock()

	if err := s.repo.Save(context.Background(), snapshot); err != nil {
		s.logger.Warn("failed to persist run", "run_id", snapshot.ID, "error", err)
	}

	s.mu.Lock()
	delete(s.active, snapshot.ID)
	s.mu.Unlock()

	s.logger.Info("run finished",
		"run_id", snapshot.ID,
		"status", snapshot.Status,
		"saved", snapshot.SavedCount(),
		"failed", snapshot.FailedCount(),
	)
}

// Get returns the live state of an active run, or the stored record.
func (s *RunService) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	s.mu.Lock()
	if ar, ok := s.active[id]; ok {
		snapshot := ar.run.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()

	return s.repo.Get(ctx, id)
}

// List returns runs newest first with the total count. Active runs show
// their live state.
func (s *RunService) List(ctx context.Context, limit, offset int) ([]*domain.Run, int, error) {
	runs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	for i, run := range runs {
		if ar, ok := s.active[run.ID]; ok {
			runs[i] = ar.run.Clone()
		}
	}
	s.mu.Unlock()

	return runs, total, nil
}

// Cancel requests cancellation of an active run.
func (s *RunService) Cancel(ctx context.Context, id domain.RunID) error {
	s.mu.Lock()
	ar, ok := s.active[id]
	s.mu.Unlock()

	if ok {
		ar.handle.Cancel()
		s.logger.Info("run cancel requested", "run_id", id)
		return nil
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrRunNotActive
}

// Wait blocks until the run has finished and been stored, then returns
// its final record.
func (s *RunService) Wait(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	s.mu.Lock()
	ar, ok := s.active[id]
	s.mu.Unlock()

	if ok {
		select {
		case <-ar.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.repo.Get(ctx, id)
}

// Shutdown cancels active runs and waits for their records to be stored.
func (s *RunService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, ar := range s.active {
		ar.handle.Cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackingSink mirrors notifications into a run record.
type trackingSink struct {
	mu  *sync.Mutex
	run *domain.Run
}

func (t *trackingSink) Report(message string) {
	t.mu.Lock()
	t.run.Progress.Message = message
	t.mu.Unlock()
}

func (t *trackingSink) SetProgress(completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The post-run reset must not move a record backwards.
	if completed < t.run.Progress.Completed {
		return
	}
	t.run.Progress.Completed = completed
	t.run.Progress.Total = total
}
