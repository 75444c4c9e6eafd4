// Package cpu simulates the Micro4 teaching processor.
//
// The Micro4 is the smallest machine in the family:
//   - 4-bit data bus, accumulator architecture
//   - 8-bit address bus (256 nibbles of memory)
//   - 8 instructions (HLT LDA STA ADD SUB JMP JZ LDI)
//
// Instructions are stored as packed nibble pairs: the opcode byte first
// (high nibble opcode, low nibble immediate), followed by an address byte
// for the memory and jump forms.
//
// The simulation is fully synchronous. A runtime fault latches the error
// flag and message and halts the machine; Reset clears the registers and
// fault state but deliberately preserves memory, so a loaded program can
// be re-run without reloading.
package cpu
