package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/sheetgrab/internal/api/handler"
	mw "github.com/iconidentify/sheetgrab/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	runHandler *handler.RunHandler,
	previewHandler *handler.PreviewHandler,
	healthHandler *handler.HealthHandler,
	uiHandler *handler.UIHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// Web UI (no auth - the page asks for the API key)
	if uiHandler != nil {
		r.Get("/", uiHandler.Index)
	}

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)
		r.Post("/preview", previewHandler.Preview)

		r.Post("/runs", runHandler.Submit)
		r.Get("/runs", runHandler.List)
		r.Get("/runs/{runID}", runHandler.Get)
		r.Delete("/runs/{runID}", runHandler.Cancel)
	})

	return r
}
