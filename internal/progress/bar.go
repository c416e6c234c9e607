package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BarSink draws a terminal progress bar and prints status lines above it.
type BarSink struct {
	mu    sync.Mutex
	w     io.Writer
	bar   *progressbar.ProgressBar
	total int
}

// NewBarSink creates a bar sink writing to w.
func NewBarSink(w io.Writer) *BarSink {
	return &BarSink{w: w}
}

func (s *BarSink) Report(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil && !s.bar.IsFinished() {
		_ = s.bar.Clear()
		fmt.Fprintln(s.w, message)
		_ = s.bar.RenderBlank()
		return
	}
	fmt.Fprintln(s.w, message)
}

func (s *BarSink) SetProgress(completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A drop back to zero is the post-run reset; keep the bar as last drawn.
	if completed == 0 && s.bar != nil && (s.bar.IsFinished() || s.bar.State().CurrentNum > 0) {
		if !s.bar.IsFinished() {
			_ = s.bar.Exit()
		}
		s.bar = nil
		return
	}
	if total <= 0 {
		return
	}
	if s.bar == nil || total != s.total {
		s.bar = s.newBar(total)
		s.total = total
	}
	_ = s.bar.Set(completed)
}

func (s *BarSink) newBar(total int) *progressbar.ProgressBar {
	w := s.w
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetItsString("file"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
