// Package progress draws stderr progress indicators for long SonarQube
// fetches. A disabled Tracker is a no-op so callers never branch.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for issue and rule fetching.
type Tracker struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
	max   int
}

// Disabled returns a tracker that draws nothing.
func Disabled() *Tracker {
	return &Tracker{}
}

// NewSpinner creates a spinner for operations with unknown total count.
func NewSpinner(label string) *Tracker {
	return newSpinner(os.Stderr, label)
}

func newSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, out: w, label: label}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int) *Tracker {
	return newTracker(os.Stderr, label, total)
}

func newTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, out: w, label: label, max: total}
}

// Enabled reports whether the tracker draws anything.
func (t *Tracker) Enabled() bool {
	return t.bar != nil
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	if t.bar == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.bar.Add(1)
}

// Page records the running count of fetched issues against the reported
// total. The bar's maximum follows the total, which the server may revise
// between pages.
func (t *Tracker) Page(fetched, total int) {
	if t.bar == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if total < fetched {
		total = fetched
	}
	if total > 0 && total != t.max {
		t.bar.ChangeMax(total)
		t.max = total
	}
	_ = t.bar.Set(fetched)
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	t.finish()
}

// FinishSkipped clears the bar and prints a skip message.
func (t *Tracker) FinishSkipped(reason string) {
	if t.finish() {
		fmt.Fprintf(t.out, "  %s skipped (%s)\n", t.label, reason)
	}
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	if t.finish() {
		fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
	}
}

func (t *Tracker) finish() bool {
	if t.bar == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	return true
}
