package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

// keyMode steps the machine one keystroke at a time with the terminal
// in raw mode, so no Enter is needed between instructions. The terminal
// state is restored on every exit path before the line-based prompt
// resumes.
func (m *monitor) keyMode(ctx context.Context) (err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("keys: stdin is not a terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("keys: %v", err)
	}
	defer func() {
		if rerr := term.Restore(fd, oldState); rerr != nil && err == nil {
			err = fmt.Errorf("keys: %v", rerr)
		}
	}()

	// Raw mode needs explicit carriage returns.
	fmt.Fprintf(m.out, "Single-key mode: s/space=step  d=regs  q=back\r\n")

	buf := make([]byte, 1)
	for {
		if _, err = os.Stdin.Read(buf); err != nil {
			return
		}

		switch buf[0] {
		case 's', ' ':
			var snap *message.Snapshot
			if snap, err = m.cpu.Step(ctx); err != nil {
				return
			}
			fmt.Fprintf(m.out, "%s\r", rawLine(snap))
			fmt.Fprintf(m.out, "\n")

		case 'd':
			var snap *message.Snapshot
			if snap, err = m.cpu.State(ctx); err != nil {
				return
			}
			fmt.Fprintf(m.out, "cycles=%d instructions=%d\r\n", snap.Cycles, snap.Instructions)

		case 'q', 0x03, 0x1B: // q, Ctrl-C, Esc
			return
		}
	}
}

func rawLine(snap *message.Snapshot) string {
	if snap.Faulted {
		return fmt.Sprintf("[FAULTED] %v", snap.FaultMessage)
	}
	if snap.Halted {
		return "[HALTED]"
	}

	return fmt.Sprintf("[PC=0x%02X A=%X Z=%d] %s",
		snap.PC, snap.Accumulator, b2i(snap.ZeroFlag), disasmAt(snap, snap.PC))
}
