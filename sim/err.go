// Package sim implements the four-stage pipelined processor described by
// the hardware ISA: one tick advances fetch, decode, execute, and memory
// by exactly one logical step, in an order chosen so the observable
// behavior matches a real pipelined implementation, landmines included.
package sim

import (
	"github.com/tinylisp/tlc/translate"
)

var f = translate.From

// ErrBadOpcode is returned when a fetched word's low 4 bits do not name
// one of the 13 defined opcodes — a sign of a malformed image.
type ErrBadOpcode struct {
	Word uint32
}

func (err ErrBadOpcode) Error() string {
	return f("word %#x does not decode to a known opcode (low nibble %#x)", err.Word, err.Word&0xF)
}
