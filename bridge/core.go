package bridge

import "github.com/kingpinzs/digital-archaeology-sub011/cpu"

// Core is the collaborator contract the CPU bridge drives. It matches
// the Micro4 export surface: lifecycle, one-instruction stepping with
// cycle cost, bulk loads, and typed state accessors including the raw
// memory region. The bridge copies everything it hands out; Memory may
// return a live view.
//
// Implementations are only ever touched from the context goroutine and
// need no locking.
type Core interface {
	Init()
	Reset() // preserves memory
	Step() (cycles int)
	Load(program []uint8, addr uint16)

	PC() uint16
	Accumulator() uint8
	ZeroFlag() bool
	Halted() bool
	Fault() (faulted bool, msg string)
	Trace() (ir, mar, mdr uint8)
	Counters() (cycles, instructions uint64)
	Memory() []uint8

	Disasm(addr uint16) string
}

var _ Core = (*cpu.Cpu)(nil)
