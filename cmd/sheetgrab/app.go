package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"

	"github.com/iconidentify/sheetgrab/internal/config"
	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/downloader"
	"github.com/iconidentify/sheetgrab/internal/extract"
	"github.com/iconidentify/sheetgrab/internal/progress"
	"github.com/iconidentify/sheetgrab/internal/repository"
	"github.com/iconidentify/sheetgrab/internal/service"
	"github.com/iconidentify/sheetgrab/internal/source"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

const maxCellWidth = 40

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	tty    bool
}

// execute runs the command line argv and returns the process exit code.
// tty selects the progress bar over log lines for downloads.
func execute(ctx context.Context, argv []string, stdout, stderr io.Writer, tty bool) int {
	var args Args
	p, err := newParser(&args)
	if err != nil {
		fmt.Fprintf(stderr, "sheetgrab: %v\n", err)
		return exitUsage
	}

	switch err := p.Parse(argv); {
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelp(stdout)
		return exitOK
	case errors.Is(err, arg.ErrVersion):
		fmt.Fprintln(stdout, args.Version())
		return exitOK
	case err != nil:
		p.WriteUsage(stderr)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	if p.Subcommand() == nil {
		p.WriteHelp(stderr)
		return exitUsage
	}

	cfg, err := config.Load(args.Config)
	if err != nil {
		fmt.Fprintf(stderr, "sheetgrab: %v\n", err)
		return exitFailure
	}

	// Info logs would tear through the progress bar.
	if tty && strings.EqualFold(cfg.Log.Level, "info") {
		cfg.Log.Level = "warn"
	}

	a := &app{
		cfg:    cfg,
		logger: cfg.Log.NewLogger(stderr),
		stdout: stdout,
		stderr: stderr,
		tty:    tty,
	}

	switch {
	case args.Preview != nil:
		return a.preview(args.Preview)
	case args.Download != nil:
		return a.download(ctx, args.Download)
	case args.History != nil:
		return a.history(ctx, args.History)
	}
	return exitUsage
}

func (a *app) pipeline() *service.PipelineService {
	dl := downloader.NewHTTPDownloader(a.cfg.Download, a.logger)
	executor := service.NewExecutor(dl, a.cfg.Download, a.logger)
	return service.NewPipelineService(source.NewReader(a.logger), executor, a.logger)
}

func (a *app) fail(err error) int {
	fmt.Fprintf(a.stderr, "sheetgrab: %v\n", err)
	return exitFailure
}

func (a *app) preview(cmd *PreviewCmd) int {
	table, err := a.pipeline().Preview(cmd.File)
	if err != nil {
		return a.fail(err)
	}
	printPreview(a.stdout, table, cmd.Limit)
	return exitOK
}

func (a *app) download(ctx context.Context, cmd *DownloadCmd) int {
	dest := cmd.Output
	if dest == "" {
		dest = a.cfg.Storage.DefaultDestination
	}

	repo, err := repository.Open(a.cfg.Storage.HistoryPath)
	if err != nil {
		return a.fail(err)
	}
	defer repo.Close()

	runs := service.NewRunService(a.pipeline(), repo, a.logger)

	var sink progress.Sink
	if a.tty {
		sink = progress.NewBarSink(a.stdout)
	} else {
		sink = progress.NewLogSink(a.logger)
	}

	run, err := runs.Submit(ctx, service.SubmitRequest{
		Source:      cmd.File,
		Destination: dest,
		Sink:        sink,
	})
	if err != nil {
		return a.fail(err)
	}

	// Ctrl-C stops after the current item.
	stop := context.AfterFunc(ctx, func() {
		runs.Cancel(context.Background(), run.ID)
	})
	defer stop()

	final, err := runs.Wait(context.Background(), run.ID)
	if err != nil {
		return a.fail(err)
	}

	printSummary(a.stdout, final)

	switch final.Status {
	case domain.RunStatusCancelled:
		return exitCancelled
	case domain.RunStatusFailed:
		return exitFailure
	default:
		return exitOK
	}
}

func (a *app) history(ctx context.Context, cmd *HistoryCmd) int {
	if a.cfg.Storage.HistoryPath == "" {
		return a.fail(errors.New("no run history configured (set storage.history_path or HISTORY_PATH)"))
	}

	repo, err := repository.Open(a.cfg.Storage.HistoryPath)
	if err != nil {
		return a.fail(err)
	}
	defer repo.Close()

	runs, err := repo.List(ctx, cmd.Limit, 0)
	if err != nil {
		return a.fail(err)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return a.fail(err)
	}

	printHistory(a.stdout, runs, total)
	return exitOK
}

// printPreview writes the table header, the detected URL column and the
// first limit rows.
func printPreview(w io.Writer, table *domain.Table, limit int) {
	fmt.Fprintf(w, "File: %s (%d rows, %d columns)\n", table.Path, table.Len(), len(table.Columns))

	column, ok := extract.FindURLColumn(table)
	if ok {
		candidates := extract.Candidates(table, column)
		fmt.Fprintf(w, "URL column: %s (%d valid links)\n", column, len(candidates))
		if len(candidates) > 0 {
			fmt.Fprintf(w, "First file: %s\n", domain.OutputFilename(table.Stem(), candidates[0].RowIndex, ".<ext>"))
		}
	} else {
		fmt.Fprintln(w, "URL column: none found")
	}

	if len(table.Columns) == 0 {
		return
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(table.Columns)+1)
	header = append(header, "ROW")
	for _, col := range table.Columns {
		if ok && col == column {
			col += " *"
		}
		header = append(header, col)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	shown := min(max(limit, 0), table.Len())
	for i := 0; i < shown; i++ {
		cells := make([]string, 0, len(table.Columns)+1)
		cells = append(cells, fmt.Sprintf("%03d", i))
		for _, col := range table.Columns {
			cells = append(cells, truncate(table.Cell(i, col).Text(), maxCellWidth))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	if rest := table.Len() - shown; rest > 0 {
		fmt.Fprintf(w, "... %d more rows\n", rest)
	}
}

// printSummary writes the result of a finished run and its failed rows.
func printSummary(w io.Writer, run *domain.Run) {
	fmt.Fprintf(w, "\n%s: %d saved, %d failed of %d links in %s\n",
		run.Status, run.SavedCount(), run.FailedCount(), run.Progress.Total, run.Destination)

	var bytes uint64
	for _, o := range run.Outcomes {
		if o.IsSaved() {
			bytes += uint64(o.Bytes)
		}
	}
	if bytes > 0 {
		fmt.Fprintf(w, "Downloaded %s\n", humanize.Bytes(bytes))
	}

	for _, o := range run.Outcomes {
		if !o.IsSaved() {
			fmt.Fprintf(w, "  row %03d  %s  %s\n", o.RowIndex, o.URL, o.Reason)
		}
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
}

// printHistory writes one line per run.
func printHistory(w io.Writer, runs []*domain.Run, total int) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSAVED\tFAILED\tSOURCE")
	for _, run := range runs {
		id := run.ID.String()
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			id, humanize.Time(run.StartedAt), run.Status, run.SavedCount(), run.FailedCount(), run.Source)
	}
	tw.Flush()

	if total > len(runs) {
		fmt.Fprintf(w, "Showing %d of %d runs\n", len(runs), total)
	}
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}
