// Package message defines the wire contract between an execution-control
// bridge and the engine goroutine it fronts: a closed set of commands
// (controller to engine), a closed set of events (engine to controller),
// and the snapshot type both sides exchange.
//
// Commands travel wrapped in an Envelope carrying a monotonically
// increasing sequence number; completion events echo that number, which
// is how a response finds its caller without any shared state. Events
// with sequence 0 are unsolicited broadcasts.
package message

// Command is a closed union of operation requests. Only the types in
// this package implement it.
type Command interface {
	isCommand()

	// Validate structurally checks the payload. Commands that fail
	// validation must never reach the engine.
	Validate() error
}

// LoadProgram resets the engine, then copies the program image into
// memory starting at Addr.
type LoadProgram struct {
	Program []uint8
	Addr    uint16
}

// Step executes exactly one instruction.
type Step struct{}

// Run starts continuous execution. Speed is instructions per tick;
// 0 means maximum (a large fixed batch per zero-delay tick).
type Run struct {
	Speed int
}

// SetSpeed changes the run cadence. Effective only while running.
type SetSpeed struct {
	Speed int
}

// Stop ends continuous execution cooperatively.
type Stop struct{}

// Reset returns registers and flags to their defaults, preserving
// memory, and clears the breakpoint set.
type Reset struct{}

// GetState requests a snapshot.
type GetState struct{}

// RestoreState resets the engine and reloads memory from the snapshot.
// Registers take their reset values, not the snapshot's; the engine
// core exposes no register setters.
type RestoreState struct {
	Snapshot *Snapshot
}

// SetBreakpoint adds an address to the breakpoint set.
type SetBreakpoint struct {
	Addr uint16
}

// ClearBreakpoint removes an address from the breakpoint set.
type ClearBreakpoint struct {
	Addr uint16
}

// GetBreakpoints requests the sorted breakpoint list.
type GetBreakpoints struct{}

// Assemble translates source text to a binary image. Understood only by
// the assembler engine.
type Assemble struct {
	Source string
}

func (LoadProgram) isCommand()     {}
func (Step) isCommand()            {}
func (Run) isCommand()             {}
func (SetSpeed) isCommand()        {}
func (Stop) isCommand()            {}
func (Reset) isCommand()           {}
func (GetState) isCommand()        {}
func (RestoreState) isCommand()    {}
func (SetBreakpoint) isCommand()   {}
func (ClearBreakpoint) isCommand() {}
func (GetBreakpoints) isCommand()  {}
func (Assemble) isCommand()        {}

func (c LoadProgram) Validate() (err error) {
	if len(c.Program) == 0 {
		err = ErrProgramEmpty
	}
	return
}

func (c Run) Validate() (err error) {
	if c.Speed < 0 {
		err = ErrSpeedNegative
	}
	return
}

func (c SetSpeed) Validate() (err error) {
	if c.Speed < 0 {
		err = ErrSpeedNegative
	}
	return
}

func (c RestoreState) Validate() (err error) {
	if c.Snapshot == nil {
		err = ErrSnapshotMissing
	}
	return
}

func (Step) Validate() error            { return nil }
func (Stop) Validate() error            { return nil }
func (Reset) Validate() error           { return nil }
func (GetState) Validate() error        { return nil }
func (SetBreakpoint) Validate() error   { return nil }
func (ClearBreakpoint) Validate() error { return nil }
func (GetBreakpoints) Validate() error  { return nil }
func (Assemble) Validate() error        { return nil }

// Envelope carries one command and its correlation sequence.
// Sequence 0 marks a fire-and-forget command expecting no reply.
type Envelope struct {
	Seq uint64
	Cmd Command
}

// Kind names a command for diagnostics and timeout errors.
func Kind(c Command) string {
	switch c.(type) {
	case LoadProgram:
		return "load-program"
	case Step:
		return "step"
	case Run:
		return "run"
	case SetSpeed:
		return "set-speed"
	case Stop:
		return "stop"
	case Reset:
		return "reset"
	case GetState:
		return "get-state"
	case RestoreState:
		return "restore-state"
	case SetBreakpoint:
		return "set-breakpoint"
	case ClearBreakpoint:
		return "clear-breakpoint"
	case GetBreakpoints:
		return "get-breakpoints"
	case Assemble:
		return "assemble"
	}

	return "unknown"
}
