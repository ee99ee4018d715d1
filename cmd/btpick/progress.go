package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/groutine"
	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ScanProgress renders a single-line countdown with the number of devices found
// so far. It only draws when the output is a terminal.
//
// Usage:
//
//	p := NewScanProgress(w, duration)
//	svc.OnEvent(p.OnEvent)
//	p.Start()
//	defer p.Stop()
//
// A ScanProgress is single-use; Stop may be called any number of times.
type ScanProgress struct {
	w        io.Writer
	enabled  bool
	duration time.Duration

	startTime time.Time
	found     atomic.Int32
	started   atomic.Bool
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      <-chan struct{}
}

// NewScanProgress creates a countdown for a scan of the given duration
func NewScanProgress(w io.Writer, duration time.Duration) *ScanProgress {
	return &ScanProgress{
		w:        w,
		enabled:  isTerminal(w),
		duration: duration,
	}
}

// isTerminal reports whether w is a file attached to a TTY
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins drawing in a background goroutine.
// Panics if called more than once on the same instance.
func (p *ScanProgress) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ScanProgress.Start called more than once")
	}
	if !p.enabled {
		return
	}

	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)

	p.print()
	p.done = groutine.Go(context.Background(), "scan-progress", func(context.Context) {
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.print()
			}
		}
	})
	p.ticker.Store(ticker)
}

// OnEvent follows the scan lifecycle; it is a discovery.EventHandler
func (p *ScanProgress) OnEvent(ev discovery.Event) {
	switch ev.Type {
	case discovery.EventDeviceFound:
		p.found.Add(1)
	case discovery.EventScanComplete, discovery.EventScanFailed:
		p.Stop()
	}
}

func (p *ScanProgress) print() {
	seconds := 0
	if remaining := p.duration - time.Since(p.startTime); remaining > 0 {
		// Round to the nearest second
		seconds = int(remaining.Seconds() + 0.5)
	}
	fmt.Fprintf(p.w, "\rSCANNING... (%ds left, %d found)   ", seconds, p.found.Load())
}

// Stop halts drawing and clears the line
func (p *ScanProgress) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.w, clearLineSequence)
}
