package message

import "slices"

// Snapshot is a fully materialized copy of all externally visible
// engine state at one instant. The memory slice is always a private
// copy, never a view into the engine's backing store, which may be
// reused or reallocated between reads.
type Snapshot struct {
	PC          uint16
	Accumulator uint8
	ZeroFlag    bool

	// Internal trace registers, for visualization.
	IR  uint8
	MAR uint8
	MDR uint8

	Halted       bool
	Faulted      bool
	FaultMessage string

	Cycles       uint64
	Instructions uint64

	Memory []uint8
}

// Clone returns a deep copy sharing nothing with the receiver.
func (s *Snapshot) Clone() (out *Snapshot) {
	if s == nil {
		return nil
	}

	dup := *s
	dup.Memory = slices.Clone(s.Memory)

	return &dup
}
