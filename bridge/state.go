package bridge

import "sync"

// State is one execution-control lifecycle state. Breakpointed is not a
// state: execution stops at a breakpoint exactly as if paused manually,
// so it parks in StateReady and the stop is reported by event.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateRunning
	StateHalted
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	}

	return "invalid"
}

// transitions lists the legal next states. Staying in the current state
// is always a no-op. Every state can fall back to Uninitialized, which
// is where termination and context crashes land.
var transitions = map[State][]State{
	StateUninitialized: {StateInitializing},
	StateInitializing:  {StateReady, StateUninitialized},
	StateReady:         {StateRunning, StateHalted, StateFaulted, StateUninitialized},
	StateRunning:       {StateReady, StateHalted, StateFaulted, StateUninitialized},
	StateHalted:        {StateReady, StateFaulted, StateUninitialized},
	StateFaulted:       {StateReady, StateUninitialized},
}

// TransitionError reports an illegal state transition.
type TransitionError struct {
	From State
	To   State
}

func (err *TransitionError) Error() string {
	return f("cannot go from %v to %v", err.From, err.To)
}

// stateMachine tracks the lifecycle of one bridge instance. It is
// shared by the host (lifecycle edges) and the frontend (execution
// edges driven by commands and engine events).
type stateMachine struct {
	mu  sync.Mutex
	cur State
}

func newStateMachine() *stateMachine {
	return &stateMachine{cur: StateUninitialized}
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cur
}

// to moves to the next state, failing on an edge the table does not
// allow. Moving to the current state is a no-op success.
func (m *stateMachine) to(next State) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur == next {
		return
	}

	for _, ok := range transitions[m.cur] {
		if ok == next {
			m.cur = next
			return
		}
	}

	return &TransitionError{From: m.cur, To: next}
}
