package ui

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/iconidentify/sheetgrab/cmd/sheetgrab-tui/internal/config"
	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/progress"
	"github.com/iconidentify/sheetgrab/internal/service"
)

// blockingRunner starts a run that only finishes once it is cancelled,
// reporting through the sink on its way out like a real run does.
type blockingRunner struct {
	submitted  chan struct{}
	cancelled  chan struct{}
	done       chan struct{}
	cancelOnce sync.Once
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		submitted: make(chan struct{}),
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (r *blockingRunner) Preview(path string) (*domain.Table, error) {
	return nil, domain.ErrMissingSource
}

func (r *blockingRunner) Submit(ctx context.Context, req service.SubmitRequest) (*domain.Run, error) {
	sink := req.Sink
	close(r.submitted)
	go func() {
		defer close(r.done)
		<-r.cancelled
		sink.Report("Download failed: http://example.com/a - context canceled")
		sink.SetProgress(1, 1)
		sink.Report("Download cancelled: 1 of 1 files processed")
	}()
	return domain.NewRun("run-1", req.Source, req.Destination), nil
}

func (r *blockingRunner) Cancel(ctx context.Context, id domain.RunID) error {
	r.cancelOnce.Do(func() { close(r.cancelled) })
	return nil
}

func (r *blockingRunner) Wait(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	<-r.done
	run := domain.NewRun(id, "orders.csv", "/tmp/out")
	run.MarkCancelled(nil)
	return run, nil
}

func newTestApp(t *testing.T, runs Runner) *App {
	t.Helper()
	cfg := &config.Config{
		Source:          "orders.csv",
		Destination:     t.TempDir(),
		PreviewRows:     10,
		ProgressRefresh: time.Hour,
	}
	a := NewApp(cfg, runs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.app.SetScreen(tcell.NewSimulationScreen("UTF-8"))
	return a
}

func TestApp_QuitDrainsActiveRun(t *testing.T) {
	runs := newBlockingRunner()
	a := newTestApp(t, runs)

	errc := make(chan error, 1)
	go func() { errc <- a.Run() }()

	a.app.QueueEvent(tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone))
	select {
	case <-runs.submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("F5 did not submit a run")
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.activeRun() == "" {
		if time.Now().After(deadline) {
			t.Fatal("run never became active")
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.app.QueueEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone))

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Ctrl+C")
	}

	select {
	case <-runs.cancelled:
	default:
		t.Error("quitting should cancel the active run")
	}
	select {
	case <-runs.done:
	default:
		t.Error("the run should finish before the UI stops")
	}

	// Notifications after the event loop is gone are dropped, not blocked on.
	reported := make(chan struct{})
	go func() {
		sink := progress.Sink(&viewSink{app: a})
		sink.Report("late message")
		sink.SetProgress(1, 1)
		close(reported)
	}()
	select {
	case <-reported:
	case <-time.After(2 * time.Second):
		t.Fatal("sink blocked after the UI stopped")
	}
}

func TestApp_StopWithoutRun(t *testing.T) {
	a := newTestApp(t, newBlockingRunner())

	errc := make(chan error, 1)
	go func() { errc <- a.Run() }()

	a.app.QueueEvent(tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModNone))

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Ctrl+Q")
	}

	if a.ctx.Err() == nil {
		t.Error("app context should be cancelled after quitting")
	}
}
