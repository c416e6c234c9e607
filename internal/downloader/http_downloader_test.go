package downloader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/sheetgrab/internal/config"
)

func testConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:   5 * time.Second,
		ChunkSize: 8192,
		UserAgent: "test-agent",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewHTTPDownloader(t *testing.T) {
	dl := NewHTTPDownloader(testConfig(), nil)

	if dl == nil {
		t.Fatal("downloader should not be nil")
	}
	if dl.userAgent != "test-agent" {
		t.Errorf("userAgent = %q, want %q", dl.userAgent, "test-agent")
	}
	if dl.client == nil {
		t.Fatal("client should not be nil")
	}
	if dl.client.Timeout != 0 {
		t.Errorf("client.Timeout = %v, want no overall timeout", dl.client.Timeout)
	}
	transport, ok := dl.client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T, want *http.Transport", dl.client.Transport)
	}
	if transport.ResponseHeaderTimeout != 5*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want 5s", transport.ResponseHeaderTimeout)
	}
}

func TestHTTPDownloader_Download_Success(t *testing.T) {
	content := []byte("%PDF-1.4 report body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want %q", ua, "test-agent")
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(content)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), testLogger())
	resp, err := dl.Download(context.Background(), server.URL+"/report")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", resp.ContentType)
	}
	if resp.ContentLength != int64(len(content)) {
		t.Errorf("ContentLength = %d, want %d", resp.ContentLength, len(content))
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("content = %q, want %q", data, content)
	}
}

func TestHTTPDownloader_Download_UnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		w.Write([]byte(" second"))
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), testLogger())
	resp, err := dl.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != -1 {
		t.Errorf("ContentLength = %d, want -1 for a chunked body", resp.ContentLength)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "first second" {
		t.Errorf("content = %q", data)
	}
}

func TestHTTPDownloader_Download_Accepts2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("partial"))
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), testLogger())
	resp, err := dl.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("StatusCode = %d, want 206", resp.StatusCode)
	}
}

func TestHTTPDownloader_Download_Non2xx(t *testing.T) {
	codes := []int{
		http.StatusNotFound,
		http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
	}

	for _, code := range codes {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(code)
			}))
			defer server.Close()

			dl := NewHTTPDownloader(testConfig(), testLogger())
			resp, err := dl.Download(context.Background(), server.URL)
			if err == nil {
				resp.Body.Close()
				t.Fatal("expected error")
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("error = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != code {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, code)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("server called %d times, want exactly 1", n)
			}
		})
	}
}

func TestHTTPDownloader_Download_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dl := NewHTTPDownloader(testConfig(), testLogger())
	_, err := dl.Download(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestHTTPDownloader_Download_InvalidURL(t *testing.T) {
	dl := NewHTTPDownloader(testConfig(), testLogger())
	if _, err := dl.Download(context.Background(), "http://[::1"); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func TestHTTPDownloader_Download_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dl := NewHTTPDownloader(testConfig(), testLogger())
	if _, err := dl.Download(context.Background(), url); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestHTTPDownloader_Download_HeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond

	dl := NewHTTPDownloader(cfg, testLogger())
	start := time.Now()
	_, err := dl.Download(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Download took %v, want it bounded by the timeout", elapsed)
	}
}

func TestHTTPDownloader_Download_StalledBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("first chunk"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Timeout = 150 * time.Millisecond

	dl := NewHTTPDownloader(cfg, testLogger())
	resp, err := dl.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("read error = %v, want ErrStalled", err)
	}
	if string(data) != "first chunk" {
		t.Errorf("data before stall = %q, want %q", data, "first chunk")
	}
}

func TestHTTPDownloader_Download_SlowButSteady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			w.Write([]byte("x"))
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Timeout = 200 * time.Millisecond

	dl := NewHTTPDownloader(cfg, testLogger())
	resp, err := dl.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("steady stream should not stall: %v", err)
	}
	if string(data) != "xxxxx" {
		t.Errorf("data = %q, want %q", data, "xxxxx")
	}
}

func TestProgressReader_CloseIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig(), testLogger())
	resp, err := dl.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if err := resp.Body.Close(); err != nil {
		t.Errorf("first Close() = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{StatusCode: 404, Status: "404 Not Found"}
	if got := err.Error(); got != "unexpected status code: 404" {
		t.Errorf("Error() = %q", got)
	}
}
