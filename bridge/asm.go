package bridge

import (
	"context"
	"time"

	"github.com/kingpinzs/digital-archaeology-sub011/asm"
	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

// Assembler is the controller-facing bridge to the assembler engine.
// Structurally identical to the CPU bridge; the assembler just has no
// run loop and a single operation.
type Assembler struct {
	host  *Host
	state *stateMachine
}

// NewAssembler builds an assembler bridge.
func NewAssembler() (a *Assembler) {
	a = &Assembler{state: newStateMachine()}
	a.host = newHost(a.state, nil, func() dispatcher {
		return &asmDispatcher{as: &asm.Assembler{}}
	})

	return
}

// Start initializes the execution context.
func (a *Assembler) Start(ctx context.Context) error {
	return a.host.Start(ctx)
}

// Terminate destroys the context. Idempotent.
func (a *Assembler) Terminate() {
	a.host.Terminate()
}

// Current returns the lifecycle state.
func (a *Assembler) Current() State {
	return a.state.current()
}

// Compile translates source text into a Micro4 binary image. Assembly
// failures come back as a *Diagnostic carrying the source line; they
// are expected outcomes, distinct from protocol failures like timeouts.
func (a *Assembler) Compile(ctx context.Context, source string) (binary []uint8, err error) {
	ev, err := a.host.Call(ctx, message.Assemble{Source: source})
	if err != nil {
		return
	}

	switch ev := ev.(type) {
	case message.Assembled:
		return ev.Binary, nil
	case message.Fault:
		return nil, &Diagnostic{Line: ev.Line, Message: ev.Message}
	}

	return nil, ErrUnexpectedEvent
}

// asmDispatcher is the engine side of the assembler bridge. Stateless
// between commands: every Assemble starts fresh.
type asmDispatcher struct {
	as *asm.Assembler
}

func (d *asmDispatcher) boot() error             { return nil }
func (d *asmDispatcher) tickC() <-chan time.Time { return nil }
func (d *asmDispatcher) tick(func(message.Event)) {
}

func (d *asmDispatcher) dispatch(env message.Envelope, emit func(message.Event)) {
	switch cmd := env.Cmd.(type) {
	case message.Assemble:
		binary, err := d.as.Assemble(cmd.Source)
		if err != nil {
			emit(message.Fault{
				Seq:     env.Seq,
				Message: err.Error(),
				Line:    asm.LineOf(err),
			})
			return
		}
		emit(message.Assembled{Seq: env.Seq, Binary: binary})

	default:
		// Closed command set; the assembler understands nothing else.
	}
}
