// sheetgrab TUI - terminal front end for downloading every link in a spreadsheet.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tuiconfig "github.com/iconidentify/sheetgrab/cmd/sheetgrab-tui/internal/config"
	"github.com/iconidentify/sheetgrab/cmd/sheetgrab-tui/internal/ui"
	"github.com/iconidentify/sheetgrab/internal/config"
	"github.com/iconidentify/sheetgrab/internal/downloader"
	"github.com/iconidentify/sheetgrab/internal/repository"
	"github.com/iconidentify/sheetgrab/internal/service"
	"github.com/iconidentify/sheetgrab/internal/source"
)

func main() {
	tuiCfg := tuiconfig.Load()

	cfg, err := config.Load(tuiCfg.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if tuiCfg.Destination == "" {
		tuiCfg.Destination = cfg.Storage.DefaultDestination
	}

	var logOut io.Writer = io.Discard
	if tuiCfg.LogPath != "" {
		f, err := os.OpenFile(tuiCfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := cfg.Log.NewLogger(logOut)

	repo, err := repository.Open(cfg.Storage.HistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening run history: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	dl := downloader.NewHTTPDownloader(cfg.Download, logger)
	executor := service.NewExecutor(dl, cfg.Download, logger)
	pipeline := service.NewPipelineService(source.NewReader(logger), executor, logger)
	runSvc := service.NewRunService(pipeline, repo, logger)

	app := ui.NewApp(tuiCfg, runSvc, logger)
	runErr := app.Run()

	// Quitting cancels the active run; wait for its record to be stored.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runSvc.Shutdown(ctx); err != nil {
		logger.Error("run shutdown error", "error", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		os.Exit(1)
	}
}
