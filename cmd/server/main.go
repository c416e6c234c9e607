package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/sheetgrab/internal/api"
	"github.com/iconidentify/sheetgrab/internal/api/handler"
	"github.com/iconidentify/sheetgrab/internal/config"
	"github.com/iconidentify/sheetgrab/internal/downloader"
	"github.com/iconidentify/sheetgrab/internal/repository"
	"github.com/iconidentify/sheetgrab/internal/service"
	"github.com/iconidentify/sheetgrab/internal/source"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sheetgrab-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting sheetgrab server",
		"version", Version,
		"build_time", BuildTime,
	)

	// Initialize dependencies
	runRepo, err := repository.Open(cfg.Storage.HistoryPath)
	if err != nil {
		logger.Error("failed to open run history", "path", cfg.Storage.HistoryPath, "error", err)
		os.Exit(1)
	}
	defer runRepo.Close()

	dl := downloader.NewHTTPDownloader(cfg.Download, logger)
	executor := service.NewExecutor(dl, cfg.Download, logger)
	pipeline := service.NewPipelineService(source.NewReader(logger), executor, logger)
	runSvc := service.NewRunService(pipeline, runRepo, logger)

	// Initialize handlers
	runHandler := handler.NewRunHandler(runSvc, cfg.Storage.DefaultDestination, logger)
	previewHandler := handler.NewPreviewHandler(runSvc, logger)
	healthHandler := handler.NewHealthHandler(runRepo, pipeline.IsRunning, cfg.Storage.DefaultDestination)
	uiHandler := handler.NewUIHandler()

	// Setup router
	router := api.NewRouter(runHandler, previewHandler, healthHandler, uiHandler, cfg.Server.APIKey, logger)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr, "history", cfg.Storage.HistoryPath)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Cancel the active run and store its record
	if err := runSvc.Shutdown(ctx); err != nil {
		logger.Error("run shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
