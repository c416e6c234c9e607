// Package ui provides the terminal user interface for sheetgrab.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/sheetgrab/cmd/sheetgrab-tui/internal/config"
	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/service"
)

const barWidth = 40

// Runner starts and controls download runs. *service.RunService implements it.
type Runner interface {
	Preview(path string) (*domain.Table, error)
	Submit(ctx context.Context, req service.SubmitRequest) (*domain.Run, error)
	Cancel(ctx context.Context, id domain.RunID) error
	Wait(ctx context.Context, id domain.RunID) (*domain.Run, error)
}

// App is the main TUI application.
type App struct {
	app    *tview.Application
	cfg    *config.Config
	runs   Runner
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	// UI components
	mainFlex     *tview.Flex
	header       *tview.TextView
	form         *tview.Form
	sourceField  *tview.InputField
	destField    *tview.InputField
	previewTable *tview.Table
	progressView *tview.TextView
	logView      *tview.TextView
	statusBar    *tview.TextView
	footer       *tview.TextView

	// State
	mu      sync.Mutex
	runID   domain.RunID
	started time.Time

	// uiMu is held for reading while an update is queued; Stop takes it
	// for writing before the event loop goes away.
	uiMu     sync.RWMutex
	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewApp creates a new TUI application.
func NewApp(cfg *config.Config, runs Runner, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:    tview.NewApplication(),
		cfg:    cfg,
		runs:   runs,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	a.setupUI()
	return a
}

// setupUI initializes all UI components.
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[white::b]sheetgrab[white] - download every link in a spreadsheet")
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)

	a.sourceField = tview.NewInputField().
		SetLabel("Spreadsheet").
		SetText(a.cfg.Source).
		SetPlaceholder("path to .xlsx, .xls or .csv")
	a.destField = tview.NewInputField().
		SetLabel("Download folder").
		SetText(a.cfg.Destination).
		SetPlaceholder("created if missing")

	a.form = tview.NewForm().
		AddFormItem(a.sourceField).
		AddFormItem(a.destField).
		AddButton("Preview", a.preview).
		AddButton("Start Download", a.start).
		AddButton("Cancel", a.cancelRun).
		AddButton("Quit", a.Stop)
	a.form.SetBorder(true).SetTitle(" Files ")

	a.previewTable = tview.NewTable().
		SetFixed(1, 1).
		SetSelectable(true, false)
	a.previewTable.SetBorder(true).SetTitle(" Preview ")

	a.progressView = tview.NewTextView().
		SetDynamicColors(true).
		SetText(renderBar(0, 0, barWidth))
	a.progressView.SetBorder(true).SetTitle(" Progress ")

	a.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(1000)
	a.logView.SetBorder(true).SetTitle(" Log ")

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetText(" Ready")
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]F2[white]:Preview [yellow]F5[white]:Start [yellow]Esc[white]:Cancel run [yellow]Tab[white]:Next field [yellow]Ctrl+Q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	body := tview.NewFlex().
		AddItem(a.previewTable, 0, 3, false).
		AddItem(a.logView, 0, 2, false)

	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.form, 7, 0, true).
		AddItem(body, 0, 1, false).
		AddItem(a.progressView, 3, 0, false).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(a.mainFlex, true)
}

// handleGlobalKeys handles global keyboard shortcuts.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyF2:
		a.preview()
		return nil
	case tcell.KeyF5:
		a.start()
		return nil
	case tcell.KeyEscape:
		if a.activeRun() != "" {
			a.cancelRun()
			return nil
		}
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		a.Stop()
		return nil
	}
	return event
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.refreshElapsed()
	err := a.app.Run()
	a.stopped.Store(true)
	a.cancel()
	return err
}

// Stop cancels the active run, lets it finish while the event loop still
// drains its updates, then stops the application. It must be called on
// the UI goroutine.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		id := a.activeRun()
		if id != "" {
			if err := a.runs.Cancel(context.Background(), id); err != nil && !errors.Is(err, domain.ErrRunNotActive) {
				a.logger.Warn("cancel on quit failed", "run_id", id, "error", err)
			}
		}
		a.cancel()
		a.setStatus("[yellow]Stopping...")

		go func() {
			if id != "" {
				if _, err := a.runs.Wait(context.Background(), id); err != nil {
					a.logger.Warn("wait on quit failed", "run_id", id, "error", err)
				}
			}

			a.uiMu.Lock()
			a.stopped.Store(true)
			a.uiMu.Unlock()

			a.app.Stop()
		}()
	})
}

// queue runs f on the UI goroutine. It is a no-op once Stop has
// released the event loop.
func (a *App) queue(f func()) {
	a.uiMu.RLock()
	defer a.uiMu.RUnlock()
	if a.stopped.Load() {
		return
	}
	a.app.QueueUpdateDraw(f)
}

func (a *App) activeRun() domain.RunID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runID
}

// preview loads the spreadsheet into the preview table.
func (a *App) preview() {
	path := strings.TrimSpace(a.sourceField.GetText())
	a.setStatus("Reading spreadsheet...")

	go func() {
		table, err := a.runs.Preview(path)
		a.queue(func() {
			if err != nil {
				a.previewTable.Clear()
				a.setStatus("[red]" + tview.Escape(errorText(err)))
				return
			}
			column, n := fillPreview(a.previewTable, table, a.cfg.PreviewRows)
			a.setStatus(previewSummary(table, column, n))
		})
	}()
}

// start submits a run with the current form values.
func (a *App) start() {
	if a.ctx.Err() != nil {
		return
	}
	if a.activeRun() != "" {
		a.setStatus("[yellow]" + domain.ErrConcurrentRun.Error())
		return
	}

	source := strings.TrimSpace(a.sourceField.GetText())
	dest := strings.TrimSpace(a.destField.GetText())
	a.logView.Clear()
	a.progressView.SetText(renderBar(0, 0, barWidth))

	go func() {
		run, err := a.runs.Submit(a.ctx, service.SubmitRequest{
			Source:      source,
			Destination: dest,
			Sink:        &viewSink{app: a},
		})
		if err != nil {
			a.logger.Warn("run not started", "source", source, "error", err)
			a.queue(func() {
				a.setStatus("[red]" + tview.Escape(errorText(err)))
			})
			return
		}

		a.mu.Lock()
		a.runID = run.ID
		a.started = time.Now()
		a.mu.Unlock()

		a.await(run.ID)
	}()
}

// await blocks until the run finishes and shows its summary.
func (a *App) await(id domain.RunID) {
	final, err := a.runs.Wait(context.Background(), id)

	a.mu.Lock()
	a.runID = ""
	a.mu.Unlock()

	a.queue(func() {
		if err != nil {
			a.setStatus("[red]" + tview.Escape(err.Error()))
			return
		}
		a.setStatus(runSummary(final))
	})
}

// cancelRun requests cancellation of the active run.
func (a *App) cancelRun() {
	id := a.activeRun()
	if id == "" {
		a.setStatus("No download in progress")
		return
	}
	if err := a.runs.Cancel(context.Background(), id); err != nil && !errors.Is(err, domain.ErrRunNotActive) {
		a.setStatus("[red]" + tview.Escape(err.Error()))
		return
	}
	a.setStatus("[yellow]Cancelling after the current file...")
}

// refreshElapsed redraws the progress title with the run's elapsed time.
func (a *App) refreshElapsed() {
	ticker := time.NewTicker(a.cfg.ProgressRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			running := a.runID != ""
			elapsed := time.Since(a.started).Truncate(time.Second)
			a.mu.Unlock()

			title := " Progress "
			if running {
				title = fmt.Sprintf(" Progress (%s) ", elapsed)
			}
			a.queue(func() {
				a.progressView.SetTitle(title)
			})
		}
	}
}

// setStatus must run on the UI goroutine.
func (a *App) setStatus(msg string) {
	a.statusBar.SetText(" " + msg)
}

// appendLog must run on the UI goroutine.
func (a *App) appendLog(msg string) {
	color := "white"
	switch {
	case strings.HasPrefix(msg, "Saved:"):
		color = "green"
	case strings.HasPrefix(msg, "Download failed:"), strings.HasPrefix(msg, "Error:"), strings.HasPrefix(msg, "Failed"):
		color = "red"
	}
	fmt.Fprintf(a.logView, "[gray]%s[-] [%s]%s[-]\n", time.Now().Format("15:04:05"), color, tview.Escape(msg))
	a.logView.ScrollToEnd()
}

// viewSink forwards run notifications to the UI goroutine.
type viewSink struct {
	app *App
}

func (s *viewSink) Report(message string) {
	s.app.queue(func() {
		s.app.appendLog(message)
		s.app.setStatus(tview.Escape(message))
	})
}

func (s *viewSink) SetProgress(completed, total int) {
	s.app.queue(func() {
		s.app.progressView.SetText(renderBar(completed, total, barWidth))
	})
}
