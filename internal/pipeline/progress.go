// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// TerminalWriter returns f when it is a terminal and nil otherwise, for use
// as Options.Progress.
func TerminalWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return f
	}
	return nil
}

// bar wraps an optional progress bar. The zero value does nothing.
type bar struct {
	pb *progressbar.ProgressBar
}

func newBar(w io.Writer, total int, desc string) *bar {
	if w == nil || total <= 1 {
		return &bar{}
	}
	return &bar{pb: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *bar) add() {
	if b.pb != nil {
		_ = b.pb.Add(1)
	}
}

func (b *bar) finish() {
	if b.pb != nil {
		_ = b.pb.Finish()
	}
}
