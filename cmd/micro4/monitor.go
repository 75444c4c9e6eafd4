package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingpinzs/digital-archaeology-sub011/bridge"
	"github.com/kingpinzs/digital-archaeology-sub011/cpu"
	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

// monitor is the interactive debug shell over the execution-control
// bridge. Engine notifications arrive asynchronously and are printed by
// the subscription; command handling stays synchronous.
type monitor struct {
	cpu     *bridge.CPU
	asm     *bridge.Assembler
	timeout time.Duration
	verbose bool

	out     io.Writer
	stopped chan struct{}
	saved   *message.Snapshot
}

func newMonitor(cp *bridge.CPU, as *bridge.Assembler, timeout time.Duration) *monitor {
	return &monitor{
		cpu:     cp,
		asm:     as,
		timeout: timeout,
		out:     os.Stdout,
		stopped: make(chan struct{}, 1),
	}
}

// notify prints unsolicited engine events and flags the end of a run.
func (m *monitor) notify(ev message.Event) {
	switch ev := ev.(type) {
	case message.Halted:
		fmt.Fprintf(m.out, "CPU halted\n")
		m.interrupted()
	case message.Fault:
		d := bridge.Diagnose(ev)
		fmt.Fprintf(m.out, "Fault (%v, %v): %v\n", d.Class, d.Class.Component(), ev.Message)
		m.interrupted()
	case message.BreakpointHit:
		fmt.Fprintf(m.out, "Breakpoint hit at 0x%02X\n", ev.Addr)
		m.interrupted()
	case message.BreakpointsList:
		if m.verbose {
			fmt.Fprintf(m.out, "Breakpoints: %v\n", ev.Addrs)
		}
	}
}

func (m *monitor) interrupted() {
	select {
	case m.stopped <- struct{}{}:
	default:
	}
}

func (m *monitor) repl(ctx context.Context) (err error) {
	cancel := m.cpu.Subscribe(m.notify)
	defer cancel()

	fmt.Fprintf(m.out, "Micro4 Interactive Monitor\n")
	fmt.Fprintf(m.out, "Type 'help' for available commands.\n")
	m.showCurrent(ctx)

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprintf(m.out, "dbg> ")
		if !in.Scan() {
			fmt.Fprintf(m.out, "\n")
			return in.Err()
		}

		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		quit, cerr := m.command(ctx, line)
		if cerr != nil {
			fmt.Fprintf(m.out, "%v\n", cerr)
		}
		if quit {
			fmt.Fprintf(m.out, "Goodbye.\n")
			return nil
		}
	}
}

func (m *monitor) command(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "step", "s":
		err = m.step(ctx)

	case "run", "r", "continue", "c":
		err = m.run(ctx)

	case "break", "b":
		err = m.breakpoint(ctx, args, true)

	case "clear":
		err = m.breakpoint(ctx, args, false)

	case "list", "l":
		var addrs []uint16
		if addrs, err = m.cpu.Breakpoints(ctx); err == nil {
			if len(addrs) == 0 {
				fmt.Fprintf(m.out, "No breakpoints set\n")
			}
			for _, addr := range addrs {
				fmt.Fprintf(m.out, "  0x%02X\n", addr)
			}
		}

	case "regs", "d", "dump":
		var snap *message.Snapshot
		if snap, err = m.cpu.State(ctx); err == nil {
			dumpState(m.out, snap)
		}

	case "mem", "m", "memory":
		err = m.memory(ctx, args)

	case "load":
		if len(args) != 1 {
			err = fmt.Errorf("usage: load <file>")
			break
		}
		err = m.load(ctx, args[0])

	case "reset":
		if _, err = m.cpu.Reset(ctx); err == nil {
			fmt.Fprintf(m.out, "CPU reset\n")
			m.showCurrent(ctx)
		}

	case "snap":
		if m.saved, err = m.cpu.State(ctx); err == nil {
			fmt.Fprintf(m.out, "Snapshot taken at PC=0x%02X\n", m.saved.PC)
		}

	case "back":
		if m.saved == nil {
			err = fmt.Errorf("no snapshot taken (use 'snap' first)")
			break
		}
		if _, err = m.cpu.Restore(ctx, m.saved); err == nil {
			fmt.Fprintf(m.out, "Memory restored; registers reset\n")
			m.showCurrent(ctx)
		}

	case "keys", "k":
		err = m.keyMode(ctx)

	case "help", "h", "?":
		m.help()

	case "quit", "q":
		quit = true

	default:
		err = fmt.Errorf("unknown command: %v (type 'help' for commands)", cmd)
	}

	return
}

func (m *monitor) step(ctx context.Context) (err error) {
	snap, err := m.cpu.Step(ctx)
	if err != nil {
		return
	}

	fmt.Fprintf(m.out, "%d cycles, %d instructions\n", snap.Cycles, snap.Instructions)
	printCurrent(m.out, snap)
	return
}

// run resumes continuous execution and waits for the engine to park
// again, bounded by the monitor's time limit.
func (m *monitor) run(ctx context.Context) (err error) {
	// Drain a stale interruption flag before waiting on a fresh one.
	select {
	case <-m.stopped:
	default:
	}

	if err = m.cpu.Run(0); err != nil {
		return
	}
	if m.cpu.Current() != bridge.StateRunning {
		// Halted or faulted machines ignore run.
		m.showCurrent(ctx)
		return
	}

	fmt.Fprintf(m.out, "Running...\n")
	select {
	case <-m.stopped:
	case <-time.After(m.timeout):
		if _, err = m.cpu.Stop(ctx); err != nil {
			return
		}
		fmt.Fprintf(m.out, "No halt within %v; stopped\n", m.timeout)
	}

	m.showCurrent(ctx)
	return
}

func (m *monitor) breakpoint(ctx context.Context, args []string, set bool) (err error) {
	name := "clear"
	if set {
		name = "break"
	}

	if len(args) != 1 {
		return fmt.Errorf("usage: %s <addr>", name)
	}

	addr, err := parseAddr(args[0])
	if err != nil {
		return
	}

	var addrs []uint16
	if set {
		addrs, err = m.cpu.SetBreakpoint(ctx, addr)
	} else {
		addrs, err = m.cpu.ClearBreakpoint(ctx, addr)
	}
	if err != nil {
		return
	}

	fmt.Fprintf(m.out, "Breakpoints: %v\n", addrs)
	return
}

func (m *monitor) memory(ctx context.Context, args []string) (err error) {
	start, end := 0, 0x3F

	if len(args) >= 1 {
		addr, aerr := parseAddr(args[0])
		if aerr != nil {
			return aerr
		}
		start = int(addr)
		end = start + 0x1F
	}
	if len(args) >= 2 {
		addr, aerr := parseAddr(args[1])
		if aerr != nil {
			return aerr
		}
		end = int(addr)
	}

	snap, err := m.cpu.State(ctx)
	if err != nil {
		return
	}

	if end >= len(snap.Memory) {
		end = len(snap.Memory) - 1
	}
	dumpMemory(m.out, snap.Memory, start, end)
	return
}

func (m *monitor) load(ctx context.Context, filename string) (err error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return
	}

	binary, err := m.asm.Compile(ctx, string(source))
	if err != nil {
		return
	}

	if _, err = m.cpu.LoadProgram(ctx, binary, 0); err != nil {
		return
	}

	fmt.Fprintf(m.out, "Assembled %d nibbles; program loaded, CPU reset\n", len(binary))
	m.showCurrent(ctx)
	return
}

func (m *monitor) showCurrent(ctx context.Context) {
	snap, err := m.cpu.State(ctx)
	if err != nil {
		fmt.Fprintf(m.out, "%v\n", err)
		return
	}

	printCurrent(m.out, snap)
}

func (m *monitor) help() {
	fmt.Fprintf(m.out, "Micro4 Monitor Commands:\n")
	fmt.Fprintf(m.out, "  step, s            Execute one instruction\n")
	fmt.Fprintf(m.out, "  run, r             Run until halt or breakpoint\n")
	fmt.Fprintf(m.out, "  break <addr>, b    Set breakpoint at address\n")
	fmt.Fprintf(m.out, "  clear <addr>       Clear breakpoint at address\n")
	fmt.Fprintf(m.out, "  list, l            List all breakpoints\n")
	fmt.Fprintf(m.out, "  regs, d            Show register state\n")
	fmt.Fprintf(m.out, "  mem <start> [end]  Dump memory\n")
	fmt.Fprintf(m.out, "  load <file>        Assemble and load program file\n")
	fmt.Fprintf(m.out, "  reset              Reset CPU (keep memory)\n")
	fmt.Fprintf(m.out, "  snap               Capture a memory snapshot\n")
	fmt.Fprintf(m.out, "  back               Restore the captured snapshot\n")
	fmt.Fprintf(m.out, "  keys, k            Single-key stepping mode\n")
	fmt.Fprintf(m.out, "  help, h, ?         Show this help\n")
	fmt.Fprintf(m.out, "  quit, q            Exit monitor\n")
	fmt.Fprintf(m.out, "Addresses are decimal, or hex with an 0x prefix.\n")
}

// parseAddr accepts decimal or 0x-prefixed hexadecimal.
func parseAddr(word string) (addr uint16, err error) {
	value, err := strconv.ParseUint(word, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %v", word)
	}

	return uint16(value), nil
}

// printCurrent shows the one-line machine summary plus the instruction
// the PC points at, decoded from the snapshot's memory copy.
func printCurrent(w io.Writer, snap *message.Snapshot) {
	if snap.Faulted {
		fmt.Fprintf(w, "[FAULTED] %v\n", snap.FaultMessage)
		return
	}
	if snap.Halted {
		fmt.Fprintf(w, "[HALTED]\n")
		return
	}

	fmt.Fprintf(w, "[PC=0x%02X A=%X Z=%d] %s\n",
		snap.PC, snap.Accumulator, b2i(snap.ZeroFlag), disasmAt(snap, snap.PC))
}

func disasmAt(snap *message.Snapshot, addr uint16) string {
	mem := snap.Memory
	if int(addr)+1 >= len(mem) {
		return "???"
	}

	opcode := mem[addr]<<4 | mem[addr+1]

	var operand uint8
	if cpu.HasOperand(opcode>>4) && int(addr)+3 < len(mem) {
		operand = mem[addr+2]<<4 | mem[addr+3]
	}

	return cpu.Disassemble(opcode, operand)
}

func dumpState(w io.Writer, snap *message.Snapshot) {
	fmt.Fprintf(w, "PC=0x%02X  A=%X  Z=%d  IR=0x%02X  MAR=0x%02X  MDR=%X\n",
		snap.PC, snap.Accumulator, b2i(snap.ZeroFlag), snap.IR, snap.MAR, snap.MDR)
	fmt.Fprintf(w, "halted=%v faulted=%v cycles=%d instructions=%d\n",
		snap.Halted, snap.Faulted, snap.Cycles, snap.Instructions)
}

// dumpMemory prints nibbles, sixteen per row.
func dumpMemory(w io.Writer, mem []uint8, start, end int) {
	for row := start &^ 0x0F; row <= end; row += 16 {
		fmt.Fprintf(w, "0x%02X:", row)
		for i := row; i < row+16 && i < len(mem); i++ {
			if i < start || i > end {
				fmt.Fprintf(w, "  .")
			} else {
				fmt.Fprintf(w, "  %X", mem[i])
			}
		}
		fmt.Fprintf(w, "\n")
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
