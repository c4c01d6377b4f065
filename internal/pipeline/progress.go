package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ProgressStatus says whether a phase is under way, done or failed.
type ProgressStatus string

const (
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent reports one phase change of a run.
type ProgressEvent struct {
	RunID   string
	Source  string
	Phase   Phase
	Status  ProgressStatus
	Attempt int // repair attempt, 0 before the first repair
	Message string
}

const progressBuffer = 64

// ProgressReporter hands run events to a single consumer. Emit never blocks:
// events that do not fit the buffer are counted and dropped.
type ProgressReporter struct {
	mu      sync.RWMutex
	ch      chan ProgressEvent
	closed  bool
	dropped atomic.Int64
}

func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan ProgressEvent, progressBuffer)}
}

// Emit is a no-op on a nil reporter and a counted drop after Close.
func (pr *ProgressReporter) Emit(ev ProgressEvent) {
	if pr == nil {
		return
	}
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	if pr.closed {
		pr.dropped.Add(1)
		return
	}
	select {
	case pr.ch <- ev:
	default:
		pr.dropped.Add(1)
	}
}

// Subscribe returns the event stream. It ends after Close.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Dropped returns how many events never reached the stream.
func (pr *ProgressReporter) Dropped() int64 {
	return pr.dropped.Load()
}

// Close ends the stream. Calling it twice is harmless.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if !pr.closed {
		pr.closed = true
		close(pr.ch)
	}
}

// FormatProgress renders an event as one status line.
func FormatProgress(ev ProgressEvent) string {
	label := ev.Phase.String()
	if ev.Attempt > 0 && (ev.Phase == PhaseRepairing || ev.Phase == PhaseVerifying) {
		label = fmt.Sprintf("%s (attempt %d)", label, ev.Attempt)
	}
	switch ev.Status {
	case ProgressWorking:
		return fmt.Sprintf("  ● %s %s...", ev.Source, label)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s %s: %s", ev.Source, label, ev.Message)
	default:
		return fmt.Sprintf("  ✓ %s %s", ev.Source, label)
	}
}
