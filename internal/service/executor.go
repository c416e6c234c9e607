package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/sheetgrab/internal/classify"
	"github.com/iconidentify/sheetgrab/internal/config"
	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/downloader"
	"github.com/iconidentify/sheetgrab/internal/progress"
)

// Executor downloads candidates one at a time into a destination folder.
type Executor struct {
	downloader downloader.Downloader
	cfg        config.DownloadConfig
	logger     *slog.Logger
}

// NewExecutor creates a new download executor.
func NewExecutor(dl downloader.Downloader, cfg config.DownloadConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8192
	}
	return &Executor{
		downloader: dl,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run attempts every candidate exactly once, in order, and returns one
// outcome per attempted candidate. Item failures never stop the loop.
// When ctx is cancelled Run stops after the current item and returns the
// outcomes so far together with the context error.
func (e *Executor) Run(ctx context.Context, candidates []domain.Candidate, destDir, stem string, sink progress.Sink) ([]domain.Outcome, error) {
	if sink == nil {
		sink = progress.Nop{}
	}

	total := len(candidates)
	completed := 0
	outcomes := make([]domain.Outcome, 0, total)
	sink.SetProgress(completed, total)

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return e.stopped(outcomes, total, sink, err)
		}

		sink.Report(fmt.Sprintf("Downloading file %d/%d...", i+1, total))

		outcome := e.fetchOne(ctx, c, destDir, stem)
		outcomes = append(outcomes, outcome)

		if outcome.IsSaved() {
			e.logger.Info("file saved",
				"row", c.RowIndex,
				"url", c.URL,
				"path", outcome.Path,
				"bytes", outcome.Bytes,
			)
			sink.Report(fmt.Sprintf("Saved: %s (%s)", outcome.Filename, humanize.Bytes(uint64(outcome.Bytes))))
		} else {
			e.logger.Warn("download failed",
				"row", c.RowIndex,
				"url", c.URL,
				"error", outcome.Reason,
			)
			sink.Report(fmt.Sprintf("Download failed: %s - %s", c.URL, outcome.Reason))
		}

		completed++
		sink.SetProgress(completed, total)

		// An aborted request is recorded as failed, but the run still ends cancelled.
		if err := ctx.Err(); err != nil {
			return e.stopped(outcomes, total, sink, err)
		}

		if i < total-1 && e.cfg.Delay > 0 {
			timer := time.NewTimer(e.cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return e.stopped(outcomes, total, sink, ctx.Err())
			case <-timer.C:
			}
		}
	}

	sink.Report(fmt.Sprintf("Download complete! %d files processed into %s", completed, destDir))
	return outcomes, nil
}

func (e *Executor) stopped(outcomes []domain.Outcome, total int, sink progress.Sink, err error) ([]domain.Outcome, error) {
	e.logger.Info("download run cancelled", "processed", len(outcomes), "total", total)
	sink.Report(fmt.Sprintf("Download cancelled: %d of %d files processed", len(outcomes), total))
	return outcomes, err
}

// fetchOne downloads a single candidate and never returns an error;
// failures are folded into the outcome.
func (e *Executor) fetchOne(ctx context.Context, c domain.Candidate, destDir, stem string) domain.Outcome {
	resp, err := e.downloader.Download(ctx, c.URL)
	if err != nil {
		e.logger.Debug("fetch failed", "error", domain.NewItemError(c, err))
		return domain.Failed(c, err)
	}
	defer resp.Body.Close()

	ext := classify.Extension(resp.ContentType, urlPath(c.URL))
	filename := domain.OutputFilename(stem, c.RowIndex, ext)
	path := filepath.Join(destDir, filename)

	n, err := e.writeFile(path, resp.Body)
	if err != nil {
		e.logger.Debug("write failed", "error", domain.NewItemError(c, err), "bytes", n)
		return domain.Failed(c, err)
	}

	return domain.Saved(c, path, filename, n)
}

// writeFile streams body into path in ChunkSize pieces, truncating any
// existing file. A partially written file is left in place on error.
func (e *Executor) writeFile(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	buf := make([]byte, e.cfg.ChunkSize)
	// Hide ReadFrom so the copy goes through buf.
	n, err := io.CopyBuffer(struct{ io.Writer }{f}, body, buf)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("stream body: %w", err)
	}

	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}

// urlPath returns the escaped path component of raw, or "" when it does
// not parse. Percent-escapes are kept, so "file%2Epdf" has no suffix.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.EscapedPath()
}
