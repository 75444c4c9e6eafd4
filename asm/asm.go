// Package asm implements the two-pass Micro4 assembler.
//
// Supported syntax:
//   - all 8 Micro4 instructions, case-insensitive
//   - labels ("loop:"), usable anywhere an address is expected
//   - ORG directive (set assembly origin)
//   - DB directive (define raw nibbles, comma separated)
//   - comments (";"), hexadecimal (0x) and decimal numbers
//   - $(expr) assemble-time expressions with labels and LINENO predeclared
//
// Output is the Micro4 nibble image from address 0 through the highest
// written address, ready to load at address 0.
package asm

import (
	"log"
	"strconv"
	"strings"

	"github.com/kingpinzs/digital-archaeology-sub011/cpu"
)

// instruction form determines the operand encoding.
const (
	formNone = iota // opcode byte only
	formAddr        // opcode byte + address byte
	formImm         // immediate packed into the opcode byte
)

var mnemonics = map[string]struct {
	op   uint8
	form int
}{
	"HLT": {cpu.OP_HLT, formNone},
	"LDA": {cpu.OP_LDA, formAddr},
	"STA": {cpu.OP_STA, formAddr},
	"ADD": {cpu.OP_ADD, formAddr},
	"SUB": {cpu.OP_SUB, formAddr},
	"JMP": {cpu.OP_JMP, formAddr},
	"JZ":  {cpu.OP_JZ, formAddr},
	"LDI": {cpu.OP_LDI, formImm},
}

// Assembler holds the state of one assembly run. The zero value is ready
// to use; Assemble may be called repeatedly, each call starts fresh.
type Assembler struct {
	Verbose bool // If set, verbosely logs assembler actions.

	labels  map[string]uint8
	output  [cpu.MemSize]uint8
	addr    int
	maxAddr int
	emitted bool
}

// Assemble translates source text into a Micro4 nibble image.
// On failure the returned error wraps an *ErrSyntax carrying the line.
func (as *Assembler) Assemble(source string) (binary []uint8, err error) {
	as.labels = map[string]uint8{}
	clear(as.output[:])
	as.maxAddr = 0
	as.emitted = false

	lines := strings.Split(source, "\n")

	for _, pass2 := range []bool{false, true} {
		as.addr = 0

		for n, line := range lines {
			lineno := n + 1
			err = as.processLine(line, lineno, pass2)
			if err != nil {
				err = &ErrSyntax{LineNo: lineno, Line: strings.TrimSpace(line), Err: err}
				return
			}
		}
	}

	if !as.emitted {
		return
	}

	binary = make([]uint8, as.maxAddr+1)
	copy(binary, as.output[:as.maxAddr+1])

	if as.Verbose {
		log.Printf("asm: %d nibbles generated", len(binary))
	}

	return
}

// Labels returns the symbol table of the last Assemble call.
func (as *Assembler) Labels() map[string]uint8 {
	out := make(map[string]uint8, len(as.labels))
	for name, addr := range as.labels {
		out[name] = addr
	}

	return out
}

// emitNibble writes one nibble at the current address.
func (as *Assembler) emitNibble(value uint8, pass2 bool) (err error) {
	if as.addr >= cpu.MemSize {
		return ErrProgramTooLarge
	}

	if pass2 {
		as.output[as.addr] = value & 0x0F
		if as.addr > as.maxAddr {
			as.maxAddr = as.addr
		}
		as.emitted = true
	}
	as.addr++

	return
}

// emitByte writes a packed byte as two nibbles, high first.
func (as *Assembler) emitByte(value uint8, pass2 bool) (err error) {
	err = as.emitNibble((value>>4)&0x0F, pass2)
	if err != nil {
		return
	}

	return as.emitNibble(value&0x0F, pass2)
}

// parseNumber accepts hexadecimal (0x) and decimal literals.
func parseNumber(word string) (value uint16, err error) {
	v64, perr := strconv.ParseUint(word, 0, 16)
	if perr != nil {
		err = ErrParseNumber(word)
		return
	}

	value = uint16(v64)
	return
}

func isLabelWord(word string) bool {
	for i, r := range word {
		alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		digit := r >= '0' && r <= '9'
		if !alpha && (!digit || i == 0) {
			return false
		}
	}

	return len(word) > 0
}

// operandValue resolves a number or label operand. Unknown labels are
// tolerated on pass 1, where addresses are still being collected.
func (as *Assembler) operandValue(word string, pass2 bool) (value uint16, err error) {
	value, err = parseNumber(word)
	if err == nil {
		return
	}

	if !isLabelWord(word) {
		return
	}

	addr, ok := as.labels[word]
	if !ok {
		if pass2 {
			err = ErrLabelMissing(word)
		} else {
			err = nil
		}
		return
	}

	err = nil
	value = uint16(addr)
	return
}

func (as *Assembler) processLine(raw string, lineno int, pass2 bool) (err error) {
	var line string
	line, err = as.expandExprs(stripComment(raw), lineno, pass2)
	if err != nil {
		return
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	// Leading label definition.
	if name, rest, ok := splitLabel(line); ok {
		if !pass2 {
			if _, dup := as.labels[name]; dup {
				return ErrLabelDuplicate(name)
			}
			as.labels[name] = uint8(as.addr)
			if as.Verbose {
				log.Printf("asm: label %v = 0x%02X", name, as.addr)
			}
		}
		line = strings.TrimSpace(rest)
		if line == "" {
			return
		}
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
	word := strings.ToUpper(fields[0])

	switch word {
	case "ORG":
		if len(fields) != 2 {
			return ErrOrgOperand
		}
		var value uint16
		value, err = parseNumber(fields[1])
		if err != nil || value >= cpu.MemSize {
			return ErrOrgOperand
		}
		as.addr = int(value)
		return

	case "DB":
		if len(fields) < 2 {
			return ErrDbOperand
		}
		args := strings.Split(strings.Join(fields[1:], " "), ",")
		for _, arg := range args {
			var value uint16
			value, err = parseNumber(strings.TrimSpace(arg))
			if err != nil {
				return ErrDbOperand
			}
			err = as.emitNibble(uint8(value), pass2)
			if err != nil {
				return
			}
		}
		return
	}

	mn, ok := mnemonics[word]
	if !ok {
		return ErrInstructionInvalid(fields[0])
	}

	switch mn.form {
	case formNone:
		if len(fields) != 1 {
			return ErrOperandExtra
		}
		return as.emitByte(mn.op<<4, pass2)

	case formImm:
		if len(fields) != 2 {
			return ErrOperandMissing
		}
		var value uint16
		value, err = as.operandValue(fields[1], pass2)
		if err != nil {
			return
		}
		if value > 0x0F {
			return ErrImmediateRange
		}
		return as.emitByte(mn.op<<4|uint8(value), pass2)

	default: // formAddr
		if len(fields) != 2 {
			return ErrOperandMissing
		}
		var value uint16
		value, err = as.operandValue(fields[1], pass2)
		if err != nil {
			return
		}
		if value >= cpu.MemSize {
			return ErrOperandRange
		}
		err = as.emitByte(mn.op<<4, pass2)
		if err != nil {
			return
		}
		return as.emitByte(uint8(value), pass2)
	}
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}

	return line
}

// splitLabel peels a "name:" prefix off the line.
func splitLabel(line string) (name, rest string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return
	}

	name = strings.TrimSpace(line[:i])
	if !isLabelWord(name) {
		return
	}

	return name, line[i+1:], true
}
