package codegen

import (
	"github.com/tinylisp/tlc/translate"
)

var f = translate.From

// ErrImmediateOverflow is returned when a binop immediate or a jump
// target does not fit the bit width the target encoding allows.
// Absolute load/store addresses are not checked.
type ErrImmediateOverflow struct {
	What  string
	Value uint32
	Bits  int
}

func (err ErrImmediateOverflow) Error() string {
	return f("%v value %#x does not fit in %v bits", err.What, err.Value, err.Bits)
}
