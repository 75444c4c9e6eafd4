package bridge

import (
	"context"

	"github.com/kingpinzs/digital-archaeology-sub011/cpu"
	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

// CPU is the controller-facing bridge to a Micro4 engine running in its
// own execution context. All methods are safe for concurrent use; none
// block the caller beyond the bounded correlated wait.
type CPU struct {
	host  *Host
	state *stateMachine
}

// NewCPU builds a bridge around a fresh Micro4.
func NewCPU() *CPU {
	return NewCPUWith(cpu.New())
}

// NewCPUWith builds a bridge around any Core, which is how other
// machines of the family (and test fakes) plug in.
func NewCPUWith(core Core) (c *CPU) {
	c = &CPU{state: newStateMachine()}
	c.host = newHost(c.state, c.observe, func() dispatcher {
		return newCPUDispatcher(core)
	})

	return
}

// observe moves the lifecycle on unsolicited engine events. Runs on the
// event pump, so transitions happen in event order.
func (c *CPU) observe(ev message.Event) {
	switch ev.(type) {
	case message.Halted:
		_ = c.state.to(StateHalted)
	case message.Fault:
		_ = c.state.to(StateFaulted)
	case message.BreakpointHit:
		// Execution parks exactly as if paused manually.
		_ = c.state.to(StateReady)
	}
}

// Start initializes the execution context. See Host.Start for the
// single-flight handshake semantics.
func (c *CPU) Start(ctx context.Context) error {
	return c.host.Start(ctx)
}

// Terminate destroys the context. Idempotent.
func (c *CPU) Terminate() {
	c.host.Terminate()
}

// Current returns the lifecycle state.
func (c *CPU) Current() State {
	return c.state.current()
}

// Subscribe registers an observer for every engine event.
func (c *CPU) Subscribe(fn func(message.Event)) (cancel func()) {
	return c.host.Subscribe(fn)
}

// snapshotCall issues a correlated command whose completion is a
// StateUpdate.
func (c *CPU) snapshotCall(ctx context.Context, cmd message.Command) (snap *message.Snapshot, err error) {
	ev, err := c.host.Call(ctx, cmd)
	if err != nil {
		return
	}

	up, ok := ev.(message.StateUpdate)
	if !ok {
		err = ErrUnexpectedEvent
		return
	}

	return up.Snapshot, nil
}

// LoadProgram forces a reset, discarding any halt or fault, copies the
// binary into memory at addr, and returns the fresh snapshot.
func (c *CPU) LoadProgram(ctx context.Context, program []uint8, addr uint16) (snap *message.Snapshot, err error) {
	if int(addr) >= cpu.MemSize {
		return nil, ErrAddressRange
	}

	if c.state.current() == StateRunning {
		if _, err = c.Stop(ctx); err != nil {
			return
		}
	}

	snap, err = c.snapshotCall(ctx, message.LoadProgram{Program: program, Addr: addr})
	if err != nil {
		return
	}

	err = c.state.to(StateReady)
	return
}

// Step executes exactly one instruction and returns the resulting
// snapshot. On a halted or faulted machine the snapshot comes back
// unchanged instead of an error, which keeps controller polling simple.
func (c *CPU) Step(ctx context.Context) (*message.Snapshot, error) {
	return c.snapshotCall(ctx, message.Step{})
}

// Run starts continuous execution at the given speed (instructions per
// tick, 0 for maximum). Fire-and-forget: it returns once the command is
// sent. On a halted or faulted machine it is a no-op.
func (c *CPU) Run(speed int) (err error) {
	cmd := message.Run{Speed: speed}
	if err = cmd.Validate(); err != nil {
		return
	}

	switch c.state.current() {
	case StateUninitialized, StateInitializing:
		return ErrNotInitialized
	case StateHalted, StateFaulted:
		return nil
	}

	if err = c.state.to(StateRunning); err != nil {
		return
	}
	if err = c.host.Send(cmd); err != nil {
		_ = c.state.to(StateReady)
	}

	return
}

// SetSpeed changes the run cadence without losing progress. Effective
// only while running; fire-and-forget.
func (c *CPU) SetSpeed(speed int) error {
	return c.host.Send(message.SetSpeed{Speed: speed})
}

// Stop ends continuous execution and returns the snapshot where it
// stopped. The lifecycle parks according to that snapshot: stopping a
// machine that already halted or faulted leaves it there, so a later
// Run cannot slip past the halted guard.
func (c *CPU) Stop(ctx context.Context) (snap *message.Snapshot, err error) {
	snap, err = c.snapshotCall(ctx, message.Stop{})
	if err != nil {
		return
	}

	err = c.state.to(parked(snap))
	return
}

// parked maps a snapshot to the state execution rests in.
func parked(snap *message.Snapshot) State {
	switch {
	case snap.Faulted:
		return StateFaulted
	case snap.Halted:
		return StateHalted
	}

	return StateReady
}

// Reset stops any run loop, then reinitializes registers while
// preserving memory contents. Explicitly not a power-on memory clear.
// A reset issued while running observes the stop complete first, so a
// stale in-flight tick can never overwrite the reset's effects.
func (c *CPU) Reset(ctx context.Context) (snap *message.Snapshot, err error) {
	if c.state.current() == StateRunning {
		if _, err = c.Stop(ctx); err != nil {
			return
		}
	}

	snap, err = c.snapshotCall(ctx, message.Reset{})
	if err != nil {
		return
	}

	err = c.state.to(StateReady)
	return
}

// State returns a fresh snapshot of all externally visible engine
// state.
func (c *CPU) State(ctx context.Context) (*message.Snapshot, error) {
	return c.snapshotCall(ctx, message.GetState{})
}

// Restore performs step-back from a previously captured snapshot: the
// engine resets and only the snapshot's memory contents are reloaded.
// Registers return to their reset values, not the snapshot's.
func (c *CPU) Restore(ctx context.Context, snap *message.Snapshot) (out *message.Snapshot, err error) {
	cmd := message.RestoreState{Snapshot: snap.Clone()}

	if c.state.current() == StateRunning {
		if _, err = c.Stop(ctx); err != nil {
			return
		}
	}

	out, err = c.snapshotCall(ctx, cmd)
	if err != nil {
		return
	}

	err = c.state.to(StateReady)
	return
}

// breakpointCall issues a correlated command whose completion is a
// BreakpointsList.
func (c *CPU) breakpointCall(ctx context.Context, cmd message.Command) (addrs []uint16, err error) {
	ev, err := c.host.Call(ctx, cmd)
	if err != nil {
		return
	}

	list, ok := ev.(message.BreakpointsList)
	if !ok {
		err = ErrUnexpectedEvent
		return
	}

	return list.Addrs, nil
}

// SetBreakpoint adds addr to the breakpoint set and returns the full
// sorted list. Every mutation is also broadcast to all subscribers:
// breakpoints are shared, observable state.
func (c *CPU) SetBreakpoint(ctx context.Context, addr uint16) ([]uint16, error) {
	if int(addr) >= cpu.MemSize {
		return nil, ErrAddressRange
	}

	return c.breakpointCall(ctx, message.SetBreakpoint{Addr: addr})
}

// ClearBreakpoint removes addr from the breakpoint set and returns the
// full sorted list.
func (c *CPU) ClearBreakpoint(ctx context.Context, addr uint16) ([]uint16, error) {
	return c.breakpointCall(ctx, message.ClearBreakpoint{Addr: addr})
}

// Breakpoints returns the sorted breakpoint list.
func (c *CPU) Breakpoints(ctx context.Context) ([]uint16, error) {
	return c.breakpointCall(ctx, message.GetBreakpoints{})
}
