package bridge

import (
	"errors"
	"regexp"

	"github.com/kingpinzs/digital-archaeology-sub011/message"
	"github.com/kingpinzs/digital-archaeology-sub011/translate"
)

var f = translate.From

var (
	ErrNotInitialized  = errors.New(f("not initialized"))
	ErrTerminated      = errors.New(f("terminated"))
	ErrStartupTimeout  = errors.New(f("startup timed out"))
	ErrUnexpectedEvent = errors.New(f("unexpected completion event"))
	ErrAddressRange    = errors.New(f("address out of range"))
)

// TimeoutError reports that a correlated operation received no matching
// event within its bound. The engine-side work is not cancelled; only
// the wait is abandoned.
type TimeoutError struct {
	Op string
}

func (err *TimeoutError) Error() string {
	return f("%v timed out", err.Op)
}

// CrashError reports that the execution context itself failed. Nothing
// further can be sent until a fresh Start.
type CrashError struct {
	Message string
}

func (err *CrashError) Error() string {
	return f("execution context failed: %v", err.Message)
}

// Diagnostic is an assembler failure located on its source line.
type Diagnostic struct {
	Line    int
	Message string
}

func (err *Diagnostic) Error() string {
	return f("line %d: %v", err.Line, err.Message)
}

// FaultClass buckets engine runtime faults for diagnostic display.
type FaultClass int

const (
	FaultUnknown FaultClass = iota
	FaultMemory
	FaultArithmetic
	FaultOpcode
	FaultStack
)

func (fc FaultClass) String() string {
	switch fc {
	case FaultMemory:
		return "memory"
	case FaultArithmetic:
		return "arithmetic"
	case FaultOpcode:
		return "invalid-opcode"
	case FaultStack:
		return "stack"
	}

	return "unknown"
}

// Component returns the owning machine component, used by visualizers
// to pick which circuit block to highlight.
func (fc FaultClass) Component() string {
	switch fc {
	case FaultMemory:
		return "memory"
	case FaultArithmetic:
		return "alu"
	case FaultOpcode:
		return "decoder"
	case FaultStack:
		return "stack"
	}

	return ""
}

// Fault messages come from the engine core as free text, so
// classification is message-pattern matching. Order matters: the
// first matching class wins.
var faultPatterns = []struct {
	class FaultClass
	re    *regexp.Regexp
}{
	{FaultOpcode, regexp.MustCompile(`(?i)unknown opcode|invalid opcode|illegal instruction`)},
	{FaultStack, regexp.MustCompile(`(?i)stack`)},
	{FaultArithmetic, regexp.MustCompile(`(?i)divide|division by zero|overflow|arithmetic`)},
	{FaultMemory, regexp.MustCompile(`(?i)out of bounds|memory|address`)},
}

// Classify buckets a raw engine fault message.
func Classify(msg string) FaultClass {
	for _, p := range faultPatterns {
		if p.re.MatchString(msg) {
			return p.class
		}
	}

	return FaultUnknown
}

// Diagnosis is a classified runtime fault, enriched for display.
type Diagnosis struct {
	Class       FaultClass
	Message     string
	Addr        uint16
	Instruction string
}

func (d Diagnosis) Error() string {
	return f("%v fault at 0x%02X: %v", d.Class, d.Addr, d.Message)
}

// Diagnose classifies a Fault event.
func Diagnose(ev message.Fault) Diagnosis {
	return Diagnosis{
		Class:       Classify(ev.Message),
		Message:     ev.Message,
		Addr:        ev.Addr,
		Instruction: ev.Instruction,
	}
}
