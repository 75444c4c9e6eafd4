package message

// Event is a closed union of engine notifications. Only the types in
// this package implement it.
type Event interface {
	isEvent()
}

// Ready reports the startup handshake succeeded. Sent exactly once per
// engine lifetime, before any other event.
type Ready struct{}

// StateUpdate carries a snapshot. Tagged with the request it completes,
// or sequence 0 for the once-per-tick broadcast of the run loop.
type StateUpdate struct {
	Seq      uint64
	Snapshot *Snapshot
}

// Halted reports the engine reached its halt instruction. Always
// unsolicited; the step or tick that produced it still answers with its
// own StateUpdate.
type Halted struct{}

// Fault reports an engine-level failure: a runtime fault from the CPU,
// or a diagnostic from the assembler. Runtime faults are expected
// outcomes of running arbitrary user programs, not protocol failures.
type Fault struct {
	Seq         uint64
	Message     string
	Addr        uint16 // program counter at the fault, CPU engine only
	Instruction string // decoded instruction at Addr, when known
	Line        int    // source line, assembler engine only
}

// BreakpointHit reports execution stopped at a breakpoint address
// (run), or landed on one (step). Unsolicited.
type BreakpointHit struct {
	Addr uint16
}

// BreakpointsList carries the full breakpoint set, sorted ascending and
// duplicate-free. Broadcast on every mutation as well as answering the
// mutating caller.
type BreakpointsList struct {
	Seq   uint64
	Addrs []uint16
}

// Assembled answers an Assemble command with the binary image.
type Assembled struct {
	Seq    uint64
	Binary []uint8
}

// Crash reports the execution context itself failed. All pending
// operations reject; the bridge must be reinitialized.
type Crash struct {
	Message string
}

func (Ready) isEvent()           {}
func (StateUpdate) isEvent()     {}
func (Halted) isEvent()          {}
func (Fault) isEvent()           {}
func (BreakpointHit) isEvent()   {}
func (BreakpointsList) isEvent() {}
func (Assembled) isEvent()       {}
func (Crash) isEvent()           {}

// SeqOf returns the request sequence an event completes, or 0 for
// unsolicited events.
func SeqOf(e Event) uint64 {
	switch ev := e.(type) {
	case StateUpdate:
		return ev.Seq
	case Fault:
		return ev.Seq
	case BreakpointsList:
		return ev.Seq
	case Assembled:
		return ev.Seq
	}

	return 0
}
