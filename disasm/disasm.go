// Package disasm renders hardware words as readable assembly, one line
// per word: the mnemonic table and operand formatting follow the
// standalone disassembler's conventions exactly, tag bit included, so a
// load or store's address operand reads as "r6" or "0x2a" depending on
// how it was actually encoded.
package disasm

import (
	"fmt"
	"strings"
)

var mnemonics = [...]string{
	0x0: "halt",
	0x1: "ld",
	0x2: "st",
	0x3: "add",
	0x4: "sub",
	0x5: "mul",
	0x6: "div",
	0x7: "mod",
	0x8: "equ",
	0x9: "gt",
	0xA: "lt",
	0xB: "jmp",
	0xC: "jif",
}

// formatTagged renders an 11-bit (or any width) tagged operand: bit 0
// selects register (1) vs immediate (0); the remaining bits, shifted
// down by one, are the register id or the immediate value.
func formatTagged(encoded uint32) string {
	if encoded&1 != 0 {
		return fmt.Sprintf("r%d", encoded>>1)
	}
	return fmt.Sprintf("0x%x", encoded>>1)
}

func formatOperands(word uint32) string {
	opcode := word & 0xF
	switch opcode {
	case 0x0:
		return fmt.Sprintf("0x%x", word>>4)
	case 0x1, 0x2:
		return fmt.Sprintf("r%d, mem[%s]", (word>>4)&0x3F, formatTagged(word>>10))
	case 0xB:
		return fmt.Sprintf("0x%x", word>>4)
	case 0xC:
		return fmt.Sprintf("r%d, 0x%x", (word>>4)&0x3F, word>>10)
	default:
		return fmt.Sprintf("r%d, %s, %s", (word>>4)&0x3F, formatTagged((word>>10)&0x7FF), formatTagged(word>>21))
	}
}

// Line renders one word at addr as a single disassembly line, with no
// trailing newline.
func Line(addr uint32, word uint32) string {
	opcode := word & 0xF
	if int(opcode) >= len(mnemonics) {
		return fmt.Sprintf("%3x: ??? 0x%08x", addr, word)
	}
	return fmt.Sprintf("%3x: %s %s", addr, mnemonics[opcode], formatOperands(word))
}

// Disassemble renders an entire image: words below dataBreak are shown
// as raw data words, the rest as instructions.
func Disassemble(words []uint32, dataBreak uint32) string {
	var b strings.Builder
	for addr, word := range words {
		if uint32(addr) < dataBreak {
			fmt.Fprintf(&b, "%3x: (data) 0x%x\n", addr, word)
		} else {
			fmt.Fprintln(&b, Line(uint32(addr), word))
		}
	}
	return b.String()
}
