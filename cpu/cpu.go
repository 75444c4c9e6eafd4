package cpu

import (
	"log"

	"github.com/kingpinzs/digital-archaeology-sub011/translate"
)

var f = translate.From

// MemSize is the memory size in nibbles.
const MemSize = 256

// nibbleMask keeps values to 4 bits.
const nibbleMask = uint8(0x0F)

// Cpu is the Micro4 simulation state.
//
// All fields are private; the accessor methods form the state surface the
// execution-control bridge reads from, and every mutation goes through
// Step, Load, or Reset.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	pc uint8 // Program counter (8-bit).
	a  uint8 // Accumulator (4-bit, low nibble).
	z  bool  // Zero flag.

	// Internal trace registers, exposed for visualization.
	ir  uint8 // Instruction register.
	mar uint8 // Memory address register.
	mdr uint8 // Memory data register.

	mem [MemSize]uint8 // One nibble per element.

	halted   bool
	faulted  bool
	faultMsg string

	cycles       uint64
	instructions uint64
}

// New creates a Micro4 in its power-on state.
func New() (cp *Cpu) {
	cp = &Cpu{}
	cp.Init()

	return
}

// Init clears the machine completely, memory included.
func (cp *Cpu) Init() {
	clear(cp.mem[:])
	cp.Reset()
}

// Reset returns the registers, flags, fault state, and counters to their
// defaults. Memory contents are preserved.
func (cp *Cpu) Reset() {
	if cp.Verbose {
		log.Printf("cpu: reset")
	}

	cp.pc = 0
	cp.a = 0
	cp.z = false
	cp.ir = 0
	cp.mar = 0
	cp.mdr = 0
	cp.halted = false
	cp.faulted = false
	cp.faultMsg = ""
	cp.cycles = 0
	cp.instructions = 0
}

// Load copies a program image into memory starting at addr. Values are
// masked to nibbles; bytes that would land past the end of memory are
// dropped.
func (cp *Cpu) Load(program []uint8, addr uint16) {
	for i := 0; i < len(program) && addr+uint16(i) < MemSize; i++ {
		cp.mem[addr+uint16(i)] = program[i] & nibbleMask
	}
}

// ReadMem returns the nibble at addr.
func (cp *Cpu) ReadMem(addr uint8) uint8 {
	return cp.mem[addr] & nibbleMask
}

// WriteMem stores a nibble at addr.
func (cp *Cpu) WriteMem(addr uint8, value uint8) {
	cp.mem[addr] = value & nibbleMask
}

// fault latches a runtime fault and halts the machine.
func (cp *Cpu) fault(msg string) {
	cp.faulted = true
	cp.faultMsg = msg
	cp.halted = true
}

// fetchByte reads two nibbles at the PC and packs them into a byte,
// advancing the PC past both.
func (cp *Cpu) fetchByte() (value uint8) {
	high := cp.mem[cp.pc] & nibbleMask
	cp.pc++
	low := cp.mem[cp.pc] & nibbleMask
	cp.pc++

	return (high << 4) | low
}

// Step executes one instruction and returns the cycles it consumed.
// Returns 0 when the machine is halted or steps into a fault.
func (cp *Cpu) Step() (cycles int) {
	if cp.halted {
		return 0
	}

	if int(cp.pc) >= MemSize-1 {
		cp.fault(f("PC out of bounds: 0x%02X", cp.pc))
		return 0
	}

	cp.ir = cp.fetchByte()
	cycles += 2 // Fetch is two nibble reads.

	opcode := (cp.ir >> 4) & nibbleMask
	operand := cp.ir & nibbleMask

	if cp.Verbose {
		log.Printf("cpu: %02x: %v", cp.pc-2, Disassemble(cp.ir, 0))
	}

	switch opcode {
	case OP_HLT:
		cp.halted = true
		cycles += 1

	case OP_LDA:
		addr := cp.fetchByte()
		cycles += 2
		cp.mar = addr
		cp.mdr = cp.ReadMem(addr)
		cp.a = cp.mdr
		cp.z = cp.a == 0
		cycles += 1

	case OP_STA:
		addr := cp.fetchByte()
		cycles += 2
		cp.mar = addr
		cp.mdr = cp.a
		cp.WriteMem(addr, cp.a)
		cycles += 1

	case OP_ADD:
		addr := cp.fetchByte()
		cycles += 2
		cp.mar = addr
		cp.mdr = cp.ReadMem(addr)
		cp.a = (cp.a + cp.mdr) & nibbleMask
		cp.z = cp.a == 0
		cycles += 1

	case OP_SUB:
		addr := cp.fetchByte()
		cycles += 2
		cp.mar = addr
		cp.mdr = cp.ReadMem(addr)
		cp.a = (cp.a - cp.mdr) & nibbleMask
		cp.z = cp.a == 0
		cycles += 1

	case OP_JMP:
		addr := cp.fetchByte()
		cycles += 2
		cp.pc = addr

	case OP_JZ:
		addr := cp.fetchByte()
		cycles += 2
		if cp.z {
			cp.pc = addr
		}
		cycles += 1

	case OP_LDI:
		cp.a = operand
		cp.z = cp.a == 0
		cycles += 1

	default:
		cp.fault(f("unknown opcode: 0x%X at PC=0x%02X", opcode, cp.pc-2))
		return cycles
	}

	cp.instructions++
	cp.cycles += uint64(cycles)

	return
}

// Run steps until halt or until maxCycles is exceeded (0 for no limit).
// Returns the total cycles executed.
func (cp *Cpu) Run(maxCycles int) (total int) {
	for !cp.halted && (maxCycles <= 0 || total < maxCycles) {
		cycles := cp.Step()
		if cycles == 0 {
			break
		}
		total += cycles
	}

	return
}

// PC returns the program counter.
func (cp *Cpu) PC() uint16 { return uint16(cp.pc) }

// Accumulator returns the accumulator's low nibble.
func (cp *Cpu) Accumulator() uint8 { return cp.a }

// ZeroFlag returns the zero flag.
func (cp *Cpu) ZeroFlag() bool { return cp.z }

// Halted reports whether the machine has stopped, by HLT or by fault.
func (cp *Cpu) Halted() bool { return cp.halted }

// Fault reports the latched fault state and its message.
func (cp *Cpu) Fault() (faulted bool, msg string) {
	return cp.faulted, cp.faultMsg
}

// Trace returns the internal IR, MAR, and MDR trace registers.
func (cp *Cpu) Trace() (ir, mar, mdr uint8) {
	return cp.ir, cp.mar, cp.mdr
}

// Counters returns the cycle and instruction totals since reset.
func (cp *Cpu) Counters() (cycles, instructions uint64) {
	return cp.cycles, cp.instructions
}

// Memory returns the live backing store. Callers that keep state across
// further execution must copy it; see the bridge snapshot rules.
func (cp *Cpu) Memory() []uint8 {
	return cp.mem[:]
}

// Disasm decodes the instruction at addr into assembly text.
func (cp *Cpu) Disasm(addr uint16) (text string) {
	if int(addr) >= MemSize-1 {
		return "???"
	}

	opcode := (cp.mem[addr]&nibbleMask)<<4 | (cp.mem[addr+1] & nibbleMask)

	var operand uint8
	if HasOperand((opcode>>4)&nibbleMask) && int(addr)+3 < MemSize {
		operand = (cp.mem[addr+2]&nibbleMask)<<4 | (cp.mem[addr+3] & nibbleMask)
	}

	return Disassemble(opcode, operand)
}
