package weapon

import (
	"sync"
	"sync/atomic"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// taskRunner implements the "at-most-one-in-flight with latest-frame
// coalescing" scheduling model from spec.md §4.3: at most one recognition
// task runs at a time; a frame observed while a task is running becomes the
// *pending* input, superseding any earlier pending frame, and is handed to
// the next task once the current one completes — not the frame observed
// when that next task started.
type taskRunner struct {
	mu         sync.Mutex
	running    bool
	pending    *model.Frame
	generation atomic.Uint64
}

// RequestCancel bumps the generation counter and drops any pending frame.
// Any task whose captured generation no longer matches CurrentGeneration
// must be discarded by the caller on completion (not applied).
func (t *taskRunner) RequestCancel() {
	t.generation.Add(1)
	t.mu.Lock()
	if t.pending != nil {
		t.pending.Close()
		t.pending = nil
	}
	t.mu.Unlock()
}

func (t *taskRunner) CurrentGeneration() uint64 {
	return t.generation.Load()
}

// IsRunning reports whether a task is currently in flight.
func (t *taskRunner) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Feed records frame as the pending input, superseding any earlier pending
// frame. Used when a task is already running.
func (t *taskRunner) Feed(frame model.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Close()
	}
	clone := frame.Clone()
	t.pending = &clone
}

// Start marks a task as running and returns the generation it was started
// under. Callers must only call Start when IsRunning() was false; a
// concurrent Start is a caller bug (not guarded here beyond the running
// flag itself, since the frame loop drives this single-threaded).
func (t *taskRunner) Start() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	return t.generation.Load()
}

// Finish marks the task complete and returns the pending frame (if any),
// clearing it. Callers spawn a follow-up task with the returned frame.
func (t *taskRunner) Finish() *model.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	next := t.pending
	t.pending = nil
	return next
}
