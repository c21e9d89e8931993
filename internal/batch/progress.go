package batch

import "fmt"

// Status describes where a file is in the batch lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusWorking  Status = "working"
	StatusComplete Status = "complete"
	StatusCached   Status = "cached"
	StatusFailed   Status = "failed"
)

// Event is one progress notification for one file.
type Event struct {
	FilePath string
	Status   Status
	Message  string
}

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan Event
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan Event, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event Event) {
	select {
	case pr.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan Event {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatEvent formats an Event as a human-readable status line.
func FormatEvent(event Event) string {
	switch event.Status {
	case StatusPending:
		return fmt.Sprintf("  ○ %s (pending)", event.FilePath)
	case StatusWorking:
		return fmt.Sprintf("  ● %s...", event.FilePath)
	case StatusComplete:
		return fmt.Sprintf("  ✓ %s", event.FilePath)
	case StatusCached:
		return fmt.Sprintf("  ✓ %s (cached)", event.FilePath)
	case StatusFailed:
		return fmt.Sprintf("  ✗ %s: %s", event.FilePath, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.FilePath)
	}
}
