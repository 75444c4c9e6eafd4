package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingpinzs/digital-archaeology-sub011/cpu"
)

func TestAssemble_LdaHlt(t *testing.T) {
	assert := assert.New(t)

	as := &Assembler{}
	binary, err := as.Assemble("LDA 5\nHLT")
	assert.NoError(err)

	// LDA emits opcode byte + address byte, HLT one opcode byte.
	assert.Equal([]uint8{0x1, 0x0, 0x0, 0x5, 0x0, 0x0}, binary)

	// Run it: one step past the LDA encoding, the next one halts.
	cp := cpu.New()
	cp.Load(binary, 0)

	cp.Step()
	assert.Equal(uint16(4), cp.PC())
	assert.False(cp.Halted())

	cp.Step()
	assert.True(cp.Halted())
}

func TestAssemble_Empty(t *testing.T) {
	assert := assert.New(t)

	as := &Assembler{}

	binary, err := as.Assemble("")
	assert.NoError(err)
	assert.Nil(binary)

	binary, err = as.Assemble("; comments only\n\n   \n")
	assert.NoError(err)
	assert.Nil(binary)
}

func TestAssemble_LabelsAndJumps(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	source := `
; count down from 3
        LDI 3
loop:   SUB one     ; A = A - 1
        JZ done
        JMP loop
done:   HLT
one:    DB 1        ; a single nibble constant
`
	as := &Assembler{}
	binary, err := as.Assemble(source)
	require.NoError(err)

	labels := as.Labels()
	assert.Equal(uint8(2), labels["loop"])
	assert.Equal(uint8(14), labels["done"])
	assert.Equal(uint8(16), labels["one"])

	cp := cpu.New()
	cp.Load(binary, 0)
	cp.Run(0)

	assert.True(cp.Halted())
	assert.True(cp.ZeroFlag())
	assert.Equal(uint16(16), cp.PC())

	faulted, _ := cp.Fault()
	assert.False(faulted)
}

func TestAssemble_Org(t *testing.T) {
	assert := assert.New(t)

	as := &Assembler{}
	binary, err := as.Assemble("ORG 0x10\nHLT")
	assert.NoError(err)

	// Image covers 0..0x11; the leading gap is zero (HLT) nibbles.
	assert.Len(binary, 0x12)
	assert.Equal(uint8(0x0), binary[0x10])
	assert.Equal(uint8(0x0), binary[0x11])
}

func TestAssemble_Expr(t *testing.T) {
	assert := assert.New(t)

	source := `
        LDA $(data + 2)
        HLT
data:   DB 1, 2, 3, 4
`
	as := &Assembler{}
	binary, err := as.Assemble(source)
	assert.NoError(err)

	// data lands at address 6; the LDA operand byte is 6+2=8.
	assert.Equal(uint8(0x0), binary[2])
	assert.Equal(uint8(0x8), binary[3])
}

func TestAssemble_ExprLineno(t *testing.T) {
	assert := assert.New(t)

	as := &Assembler{}
	binary, err := as.Assemble("LDI $(LINENO)")
	assert.NoError(err)
	assert.Equal([]uint8{0x7, 0x1}, binary)
}

func TestAssemble_Errors(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   error
		line   int
	}{
		{"unknown instruction", "HLT\nNOP", ErrInstructionInvalid("NOP"), 2},
		{"missing operand", "LDA", ErrOperandMissing, 1},
		{"extra operand", "HLT 1", ErrOperandExtra, 1},
		{"undefined label", "JMP nowhere", ErrLabelMissing("nowhere"), 1},
		{"duplicate label", "x: HLT\nx: HLT", ErrLabelDuplicate("x"), 2},
		{"immediate range", "LDI 16", ErrImmediateRange, 1},
		{"address range", "LDA 0x100", ErrOperandRange, 1},
		{"bad org", "ORG oops", ErrOrgOperand, 1},
		{"bad db", "DB zap", ErrDbOperand, 1},
		{"bad expr", "LDI $(nope)", ErrParseExpression("nope"), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			as := &Assembler{}
			_, err := as.Assemble(tc.source)
			assert.ErrorContains(err, tc.want.Error())
			assert.Equal(tc.line, LineOf(err))
		})
	}
}

func TestAssemble_TooLarge(t *testing.T) {
	assert := assert.New(t)

	as := &Assembler{}
	_, err := as.Assemble("ORG 0xFF\nLDA 0")
	assert.ErrorContains(err, ErrProgramTooLarge.Error())
}

func TestAssemble_Reusable(t *testing.T) {
	assert := assert.New(t)

	as := &Assembler{}

	first, err := as.Assemble("x: JMP x")
	assert.NoError(err)
	assert.Equal([]uint8{0x5, 0x0, 0x0, 0x0}, first)

	second, err := as.Assemble("HLT")
	assert.NoError(err)
	assert.Equal([]uint8{0x0, 0x0}, second)
	assert.NotContains(as.Labels(), "x")
}
