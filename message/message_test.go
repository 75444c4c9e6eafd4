package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommand_Validate(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{"load ok", LoadProgram{Program: []uint8{1, 0}}, nil},
		{"load empty", LoadProgram{}, ErrProgramEmpty},
		{"run ok", Run{Speed: 10}, nil},
		{"run max", Run{Speed: 0}, nil},
		{"run negative", Run{Speed: -1}, ErrSpeedNegative},
		{"set-speed negative", SetSpeed{Speed: -5}, ErrSpeedNegative},
		{"restore nil", RestoreState{}, ErrSnapshotMissing},
		{"restore ok", RestoreState{Snapshot: &Snapshot{}}, nil},
		{"step", Step{}, nil},
		{"assemble", Assemble{Source: ""}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.cmd.Validate(), tc.want)
		})
	}
}

func TestKind(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("step", Kind(Step{}))
	assert.Equal("load-program", Kind(LoadProgram{}))
	assert.Equal("set-breakpoint", Kind(SetBreakpoint{Addr: 4}))
	assert.Equal("assemble", Kind(Assemble{}))
}

func TestSeqOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint64(7), SeqOf(StateUpdate{Seq: 7}))
	assert.Equal(uint64(9), SeqOf(Fault{Seq: 9}))
	assert.Equal(uint64(3), SeqOf(BreakpointsList{Seq: 3}))
	assert.Equal(uint64(5), SeqOf(Assembled{Seq: 5}))

	// Unsolicited notifications carry no sequence.
	assert.Zero(SeqOf(Ready{}))
	assert.Zero(SeqOf(Halted{}))
	assert.Zero(SeqOf(BreakpointHit{Addr: 2}))
	assert.Zero(SeqOf(Crash{}))
	assert.Zero(SeqOf(StateUpdate{}))
}

func TestSnapshot_Clone(t *testing.T) {
	assert := assert.New(t)

	orig := &Snapshot{
		PC:          6,
		Accumulator: 5,
		ZeroFlag:    false,
		Halted:      true,
		Memory:      []uint8{1, 2, 3},
	}

	dup := orig.Clone()
	assert.Equal(orig, dup)

	// No aliasing: mutating the copy leaves the original alone.
	dup.Memory[0] = 9
	assert.Equal(uint8(1), orig.Memory[0])

	var nilSnap *Snapshot
	assert.Nil(nilSnap.Clone())
}
