package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/sheetgrab/internal/config"
)

// ErrStalled is returned when no data arrives for the configured timeout.
var ErrStalled = errors.New("download stalled")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// progressLogInterval is how often a long download logs its progress.
const progressLogInterval = 30 * time.Second

// HTTPDownloader implements Downloader using HTTP GET requests.
type HTTPDownloader struct {
	// client has no overall timeout; the header timeout and the read
	// watchdog bound each request instead.
	client    *http.Client
	userAgent string
	cfg       config.DownloadConfig
	logger    *slog.Logger
}

// NewHTTPDownloader creates a new HTTP downloader.
func NewHTTPDownloader(cfg config.DownloadConfig, logger *slog.Logger) *HTTPDownloader {
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &HTTPDownloader{
		client:    &http.Client{Transport: transport},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    logger,
	}
}

// Download sends a single GET for url. Any non-2xx status is an error.
// Reads from the returned body fail with ErrStalled once no byte has
// arrived for the configured timeout.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	wd := newWatchdog(d.cfg.Timeout, cancel)

	fail := func(err error) (*Response, error) {
		wd.stop()
		cancel()
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Errorf("create request: %w", err))
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if wd.fired() {
			return fail(fmt.Errorf("send request: %w: no response within %v", ErrStalled, d.cfg.Timeout))
		}
		return fail(fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return fail(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}

	wd.kick()
	return &Response{
		Body:          newProgressReader(resp.Body, resp.ContentLength, wd, cancel, d.logger, url),
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		StatusCode:    resp.StatusCode,
	}, nil
}

// watchdog cancels a request when it is not kicked within timeout.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() {
			w.stalled.Store(true)
			cancel()
		})
	}
	return w
}

func (w *watchdog) kick() {
	if w.timer != nil && !w.stalled.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *watchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watchdog) fired() bool {
	return w.stalled.Load()
}

// progressReader wraps a response body to track download progress
// and turn watchdog cancellation into ErrStalled.
type progressReader struct {
	reader     io.ReadCloser
	total      int64
	downloaded int64
	wd         *watchdog
	cancel     context.CancelFunc
	lastLog    time.Time
	logger     *slog.Logger
	url        string
	mu         sync.Mutex
	closed     bool
}

func newProgressReader(r io.ReadCloser, total int64, wd *watchdog, cancel context.CancelFunc, logger *slog.Logger, url string) *progressReader {
	return &progressReader{
		reader:  r,
		total:   total,
		wd:      wd,
		cancel:  cancel,
		lastLog: time.Now(),
		logger:  logger,
		url:     url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		p.wd.kick()

		if time.Since(p.lastLog) > progressLogInterval {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	if err != nil && err != io.EOF && p.wd.fired() {
		return n, fmt.Errorf("%w: no data received for %v", ErrStalled, p.wd.timeout)
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.wd.stop()

	p.logger.Debug("download finished",
		"url", p.url,
		"bytes", p.downloaded,
		"size", humanize.Bytes(uint64(p.downloaded)),
	)
	p.mu.Unlock()

	err := p.reader.Close()
	p.cancel()
	return err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"url", p.url,
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
			"total", humanize.Bytes(uint64(p.total)),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"url", p.url,
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
		)
	}
}
