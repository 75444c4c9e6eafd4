package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateMachine_LegalPaths(t *testing.T) {
	assert := assert.New(t)

	m := newStateMachine()
	assert.Equal(StateUninitialized, m.current())

	// The full happy path of one session.
	assert.NoError(m.to(StateInitializing))
	assert.NoError(m.to(StateReady))
	assert.NoError(m.to(StateRunning))
	assert.NoError(m.to(StateReady))
	assert.NoError(m.to(StateRunning))
	assert.NoError(m.to(StateHalted))
	assert.NoError(m.to(StateReady))
	assert.NoError(m.to(StateUninitialized))
}

func TestStateMachine_SameStateNoop(t *testing.T) {
	assert := assert.New(t)

	m := newStateMachine()
	assert.NoError(m.to(StateUninitialized))
	assert.Equal(StateUninitialized, m.current())
}

func TestStateMachine_IllegalEdges(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		from State
		to   State
	}{
		{StateUninitialized, StateReady},
		{StateUninitialized, StateRunning},
		{StateInitializing, StateRunning},
		{StateHalted, StateRunning},
		{StateFaulted, StateRunning},
		{StateFaulted, StateHalted},
	}

	for _, test := range tests {
		m := &stateMachine{cur: test.from}

		err := m.to(test.to)

		var te *TransitionError
		if assert.ErrorAs(err, &te, "%v -> %v", test.from, test.to) {
			assert.Equal(test.from, te.From)
			assert.Equal(test.to, te.To)
		}
		assert.Equal(test.from, m.current())
	}
}

func TestStateMachine_AnyStateCanTearDown(t *testing.T) {
	assert := assert.New(t)

	for _, from := range []State{
		StateInitializing, StateReady, StateRunning, StateHalted, StateFaulted,
	} {
		m := &stateMachine{cur: from}
		assert.NoError(m.to(StateUninitialized), "from %v", from)
	}
}

func TestState_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("uninitialized", StateUninitialized.String())
	assert.Equal("running", StateRunning.String())
	assert.Equal("faulted", StateFaulted.String())
	assert.Equal("invalid", State(99).String())
}
