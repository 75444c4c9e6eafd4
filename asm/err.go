package asm

import (
	"errors"

	"github.com/kingpinzs/digital-archaeology-sub011/translate"
)

var f = translate.From

var (
	ErrOrgOperand      = errors.New(f("invalid ORG operand"))
	ErrDbOperand       = errors.New(f("invalid DB operand"))
	ErrOperandMissing  = errors.New(f("operand missing"))
	ErrOperandExtra    = errors.New(f("excessive arguments"))
	ErrOperandRange    = errors.New(f("address out of range"))
	ErrImmediateRange  = errors.New(f("immediate out of range"))
	ErrProgramTooLarge = errors.New(f("program exceeds memory"))
)

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("undefined label: %v", string(el))
}

type ErrLabelDuplicate string

func (el ErrLabelDuplicate) Error() string {
	return f("duplicate label: %v", string(el))
}

type ErrInstructionInvalid string

func (ei ErrInstructionInvalid) Error() string {
	return f("unknown instruction: %v", string(ei))
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrSyntax locates an assembly error on its source line.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

// LineOf extracts the source line number from an assembly error,
// or 0 when the error carries no location.
func LineOf(err error) int {
	var es *ErrSyntax
	if errors.As(err, &es) {
		return es.LineNo
	}

	return 0
}
