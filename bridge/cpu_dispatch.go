package bridge

import (
	"maps"
	"slices"
	"time"

	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

// cpuDispatcher is the engine side of the CPU bridge: it owns the core,
// the run-loop scheduler, and the breakpoint set, all confined to the
// context goroutine.
type cpuDispatcher struct {
	core   Core
	sched  scheduler
	breaks map[uint16]struct{}
}

func newCPUDispatcher(core Core) *cpuDispatcher {
	return &cpuDispatcher{
		core:   core,
		breaks: map[uint16]struct{}{},
	}
}

func (d *cpuDispatcher) boot() (err error) {
	d.core.Init()
	return
}

func (d *cpuDispatcher) tickC() <-chan time.Time {
	return d.sched.c
}

// snapshot copies all externally visible core state. The memory copy is
// eager: the core's backing store is live and may be rewritten by the
// very next instruction.
func (d *cpuDispatcher) snapshot() *message.Snapshot {
	faulted, msg := d.core.Fault()
	ir, mar, mdr := d.core.Trace()
	cycles, instructions := d.core.Counters()

	return &message.Snapshot{
		PC:           d.core.PC(),
		Accumulator:  d.core.Accumulator(),
		ZeroFlag:     d.core.ZeroFlag(),
		IR:           ir,
		MAR:          mar,
		MDR:          mdr,
		Halted:       d.core.Halted(),
		Faulted:      faulted,
		FaultMessage: msg,
		Cycles:       cycles,
		Instructions: instructions,
		Memory:       slices.Clone(d.core.Memory()),
	}
}

func (d *cpuDispatcher) faultEvent() message.Fault {
	_, msg := d.core.Fault()
	pc := d.core.PC()

	return message.Fault{
		Message:     msg,
		Addr:        pc,
		Instruction: d.core.Disasm(pc),
	}
}

func (d *cpuDispatcher) breakList() []uint16 {
	return slices.Sorted(maps.Keys(d.breaks))
}

// clearBreaks empties the set and, when that changed anything,
// broadcasts the now-empty list.
func (d *cpuDispatcher) clearBreaks(emit func(message.Event)) {
	if len(d.breaks) == 0 {
		return
	}

	d.breaks = map[uint16]struct{}{}
	emit(message.BreakpointsList{Addrs: []uint16{}})
}

func (d *cpuDispatcher) dispatch(env message.Envelope, emit func(message.Event)) {
	switch cmd := env.Cmd.(type) {
	case message.LoadProgram:
		d.sched.stop()
		d.core.Reset()
		d.clearBreaks(emit)
		d.core.Load(cmd.Program, cmd.Addr)
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: d.snapshot()})

	case message.Step:
		d.step(env.Seq, emit)

	case message.Run:
		// Fire-and-forget; a halted or faulted machine needs a reset
		// first, so the run request is dropped on the floor.
		if !d.core.Halted() {
			d.sched.start(cmd.Speed)
		}

	case message.SetSpeed:
		d.sched.retime(cmd.Speed)

	case message.Stop:
		d.sched.stop()
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: d.snapshot()})

	case message.Reset:
		d.sched.stop()
		d.core.Reset()
		d.clearBreaks(emit)
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: d.snapshot()})

	case message.GetState:
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: d.snapshot()})

	case message.RestoreState:
		// Partial restore: memory comes back from the snapshot, the
		// registers take their reset values. The core exposes no
		// register setters, so this is the documented limit of
		// step-back.
		d.sched.stop()
		d.core.Reset()
		d.core.Load(cmd.Snapshot.Memory, 0)
		emit(message.StateUpdate{Seq: env.Seq, Snapshot: d.snapshot()})

	case message.SetBreakpoint:
		if int(cmd.Addr) < len(d.core.Memory()) {
			d.breaks[cmd.Addr] = struct{}{}
		}
		emit(message.BreakpointsList{Seq: env.Seq, Addrs: d.breakList()})

	case message.ClearBreakpoint:
		delete(d.breaks, cmd.Addr)
		emit(message.BreakpointsList{Seq: env.Seq, Addrs: d.breakList()})

	case message.GetBreakpoints:
		emit(message.BreakpointsList{Seq: env.Seq, Addrs: d.breakList()})

	default:
		// Closed command set per engine; anything else is dropped
		// before it can touch the core.
	}
}

// step executes exactly one instruction. Unlike the run loop, a
// breakpoint at the landed-on address is reported but never suppresses
// execution: stepping must always advance. The caller always receives a
// full snapshot, whatever the instruction did; a halted or faulted
// machine steps nowhere and answers with its state unchanged.
func (d *cpuDispatcher) step(seq uint64, emit func(message.Event)) {
	if !d.core.Halted() {
		d.core.Step()

		if faulted, _ := d.core.Fault(); faulted {
			emit(d.faultEvent())
		} else if d.core.Halted() {
			emit(message.Halted{})
		} else if _, hit := d.breaks[d.core.PC()]; hit {
			emit(message.BreakpointHit{Addr: d.core.PC()})
		}
	}

	emit(message.StateUpdate{Seq: seq, Snapshot: d.snapshot()})
}

// tick runs one scheduled batch. Before every instruction it checks, in
// order: fault, halt, breakpoint at the current PC; a breakpoint stops
// the loop without executing that instruction. Exactly one StateUpdate
// is emitted per tick, never one per instruction, which bounds event
// volume at high speed.
func (d *cpuDispatcher) tick(emit func(message.Event)) {
	budget := d.sched.batch()

	for n := 0; n < budget; n++ {
		if faulted, _ := d.core.Fault(); faulted {
			d.sched.stop()
			emit(d.faultEvent())
			return
		}

		if d.core.Halted() {
			d.sched.stop()
			emit(message.StateUpdate{Snapshot: d.snapshot()})
			emit(message.Halted{})
			return
		}

		if _, hit := d.breaks[d.core.PC()]; hit {
			d.sched.stop()
			emit(message.StateUpdate{Snapshot: d.snapshot()})
			emit(message.BreakpointHit{Addr: d.core.PC()})
			return
		}

		d.core.Step()
	}

	emit(message.StateUpdate{Snapshot: d.snapshot()})
	d.sched.arm()
}
