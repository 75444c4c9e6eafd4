package cpu

import "fmt"

// Micro4 opcodes, one per high nibble of the opcode byte.
const (
	OP_HLT = uint8(0x0) // Halt execution
	OP_LDA = uint8(0x1) // Load accumulator from memory
	OP_STA = uint8(0x2) // Store accumulator to memory
	OP_ADD = uint8(0x3) // Add memory to accumulator
	OP_SUB = uint8(0x4) // Subtract memory from accumulator
	OP_JMP = uint8(0x5) // Unconditional jump
	OP_JZ  = uint8(0x6) // Jump if zero flag set
	OP_LDI = uint8(0x7) // Load immediate (4-bit value)
)

// OpcodeNames maps each opcode nibble to its mnemonic.
var OpcodeNames = [16]string{
	"HLT", "LDA", "STA", "ADD", "SUB", "JMP", "JZ", "LDI",
	"???", "???", "???", "???", "???", "???", "???", "???",
}

// HasOperand reports whether the opcode is followed by an address byte.
func HasOperand(op uint8) bool {
	return op >= OP_LDA && op <= OP_JZ
}

// Disassemble renders an opcode byte and its operand byte as assembly text.
// The operand is ignored for the forms that do not take one.
func Disassemble(opcode uint8, operand uint8) (text string) {
	op := (opcode >> 4) & nibbleMask
	imm := opcode & nibbleMask

	switch op {
	case OP_HLT:
		text = "HLT"
	case OP_LDI:
		text = fmt.Sprintf("LDI %d", imm)
	case OP_LDA, OP_STA, OP_ADD, OP_SUB, OP_JMP, OP_JZ:
		text = fmt.Sprintf("%s 0x%02X", OpcodeNames[op], operand)
	default:
		text = fmt.Sprintf("??? 0x%02X", opcode)
	}

	return
}
