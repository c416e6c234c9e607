// Package progress defines the status and progress sink a run reports to.
package progress

import (
	"log/slog"
	"sync"
)

// Sink receives status messages and progress updates from a run.
// Implementations must be safe to call from the run goroutine.
type Sink interface {
	// Report delivers a human-readable status line.
	Report(message string)
	// SetProgress delivers the number of completed items out of total.
	SetProgress(completed, total int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Report(string)        {}
func (Nop) SetProgress(int, int) {}

// Func adapts plain functions to a Sink. Nil fields are skipped.
type Func struct {
	ReportFunc   func(message string)
	ProgressFunc func(completed, total int)
}

func (f Func) Report(message string) {
	if f.ReportFunc != nil {
		f.ReportFunc(message)
	}
}

func (f Func) SetProgress(completed, total int) {
	if f.ProgressFunc != nil {
		f.ProgressFunc(completed, total)
	}
}

// Multi fans every notification out to each sink in order.
type Multi []Sink

func (m Multi) Report(message string) {
	for _, s := range m {
		if s != nil {
			s.Report(message)
		}
	}
}

func (m Multi) SetProgress(completed, total int) {
	for _, s := range m {
		if s != nil {
			s.SetProgress(completed, total)
		}
	}
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging status lines at info level and
// progress at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(message string) {
	s.logger.Info(message)
}

func (s *LogSink) SetProgress(completed, total int) {
	s.logger.Debug("progress", "completed", completed, "total", total)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	progress [][2]int
}

func (r *Recorder) Report(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *Recorder) SetProgress(completed, total int) {
	r.mu.Lock()
	r.progress = append(r.progress, [2]int{completed, total})
	r.mu.Unlock()
}

// Messages returns a copy of the reported status lines.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Progress returns a copy of the progress updates as {completed, total} pairs.
func (r *Recorder) Progress() [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]int(nil), r.progress...)
}
