// Package progress implements the push channel that reports phase-tagged
// status messages to the single observer of one harvest invocation.
package progress

import (
	"log/slog"

	"github.com/tejasvajaitly/linkedin-scraper-api/models"
)

// Emitter pushes ProgressEvents to one observer in emission order. Sends are
// synchronous with respect to the underlying channel; pipeline stages treat
// Emit as fire-and-forget. An Emitter is scoped to one invocation and must
// not be reused.
//
// A nil Emitter discards all events, so library callers that do not care
// about progress can pass nil.
type Emitter struct {
	ch chan models.ProgressEvent
}

// New creates an Emitter with the given channel buffer size. A buffer of 0
// makes every Emit block until the observer receives the event.
func New(buffer int) *Emitter {
	return &Emitter{ch: make(chan models.ProgressEvent, buffer)}
}

// Events returns the receive side of the channel for the observer.
func (e *Emitter) Events() <-chan models.ProgressEvent {
	return e.ch
}

// Emit pushes one status message. Consumers rely on receiving "started"
// before "completed" for the same logical step, so Emit must be called in
// temporal program order.
func (e *Emitter) Emit(phase models.Phase, message string) {
	if e == nil {
		return
	}
	slog.Debug("progress", "phase", phase, "message", message)
	e.ch <- models.ProgressEvent{Phase: phase, Message: message}
}

// Error pushes an error-phase event carrying a best-effort human-readable
// message alongside the underlying error text.
func (e *Emitter) Error(message string, err error) {
	if e == nil {
		return
	}
	ev := models.ProgressEvent{Phase: models.PhaseError, Message: message}
	if err != nil {
		ev.Error = err.Error()
	}
	slog.Debug("progress", "phase", models.PhaseError, "message", message, "error", err)
	e.ch <- ev
}

// Close ends the stream. No events may be emitted afterwards.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	close(e.ch)
}
