package service

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/sheetgrab/internal/config"
	"github.com/iconidentify/sheetgrab/internal/downloader"
	"github.com/iconidentify/sheetgrab/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDownloadConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:   5 * time.Second,
		Delay:     0,
		ChunkSize: 8192,
		UserAgent: "test-agent",
	}
}

// newFileServer serves a small fixed set of paths:
//
//	/a.png     image/png body
//	/report    application/pdf body
//	/notes     no content type, plain body
//	/missing   404
//	/block     waits until release is closed
func newFileServer(t *testing.T, release <-chan struct{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("PNGDATA"))
	})
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("plain notes"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("JPEG"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeCSV writes content to dir/name and returns the path.
func writeCSV(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestExecutor(cfg config.DownloadConfig) *Executor {
	return NewExecutor(downloader.NewHTTPDownloader(cfg, testLogger()), cfg, testLogger())
}

func newTestPipeline(cfg config.DownloadConfig) *PipelineService {
	return NewPipelineService(source.NewReader(testLogger()), newTestExecutor(cfg), testLogger())
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
