package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/sheetgrab/internal/repository"
)

var startTime = time.Now()

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	runRepo     repository.RunRepository
	running     func() bool
	storagePath string
}

// NewHealthHandler creates a new health handler. running reports whether a
// download is in progress; storagePath is the folder whose disk usage is
// reported by Stats.
func NewHealthHandler(runRepo repository.RunRepository, running func() bool, storagePath string) *HealthHandler {
	if running == nil {
		running = func() bool { return false }
	}
	return &HealthHandler{
		runRepo:     runRepo,
		running:     running,
		storagePath: storagePath,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Runs      *RunOverview `json:"runs,omitempty"`
}

// RunOverview summarizes run history for readiness checks.
type RunOverview struct {
	Total  int  `json:"total"`
	Active bool `json:"active"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	total, err := h.runRepo.Count(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Runs: &RunOverview{
			Total:  total,
			Active: h.running(),
		},
	})
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	CPUUsagePct    float64 `json:"cpu_usage_pct"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	DiskFreeHuman  string  `json:"disk_free_human,omitempty"`
	StoragePath    string  `json:"storage_path,omitempty"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUUsagePct:   getCPUUsage(),
		StoragePath:   h.storagePath,
	}

	if h.storagePath != "" {
		total, free, _, usedPct := getDiskStats(h.storagePath)
		stats.DiskTotalBytes = total
		stats.DiskFreeBytes = free
		stats.DiskUsedPct = usedPct
		if total > 0 {
			stats.DiskFreeHuman = humanize.Bytes(uint64(free))
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
