// Package recorder implements C4 (the recording state machine) and C5 (the
// auto-recorder orchestrator) that drives it off the per-frame analyzer and
// weapon-recognition output.
package recorder

import (
	"log/slog"
	"sync"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// Listener is invoked on every state transition, in registration order.
// A listener may run its own work asynchronously; an error it returns is
// logged but never rolls back the transition nor blocks later listeners.
type Listener func(from, to model.RecordState, event model.RecordEvent) error

// transitions is the table from spec.md §4.4. A missing (state, event) pair
// is a no-op: the event is accepted but nothing changes.
var transitions = map[model.RecordState]map[model.RecordEvent]model.RecordState{
	model.StateStopped: {
		model.EventStart: model.StateRecording,
	},
	model.StateRecording: {
		model.EventPause: model.StatePaused,
		model.EventStop:  model.StateStopped,
	},
	model.StatePaused: {
		model.EventResume: model.StateRecording,
		model.EventStop:   model.StateStopped,
	},
}

// StateMachine is C4: a small, thread-safe transition table with
// in-order listener fan-out. It holds no knowledge of capture, frames, or
// metadata — that belongs to C5's Orchestrator, which embeds one of these.
type StateMachine struct {
	mu        sync.Mutex
	state     model.RecordState
	listeners []Listener
}

// NewStateMachine starts in the stopped state.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: model.StateStopped}
}

// State returns the current state.
func (m *StateMachine) State() model.RecordState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener. Listeners fire in registration order on
// every transition that actually changes state; a no-op event never calls
// any listener (see Fire).
func (m *StateMachine) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Fire applies event to the current state. If the (state, event) pair has
// no table entry, it is a no-op: state is unchanged and no listener fires.
// Otherwise every listener is invoked in registration order; a listener
// error is logged and does not prevent the remaining listeners from firing,
// nor does it roll back the transition (spec.md §4.4).
func (m *StateMachine) Fire(event model.RecordEvent) model.RecordState {
	m.mu.Lock()
	from := m.state
	to, ok := transitions[from][event]
	if !ok {
		m.mu.Unlock()
		return from
	}
	m.state = to
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		if err := l(from, to, event); err != nil {
			slog.Error("recorder", "op", "listener", "from", from, "to", to, "event", event, "err", err)
		}
	}
	return to
}
