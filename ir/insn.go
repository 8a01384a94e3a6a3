package ir

import "fmt"

// Insn is a three-address IR instruction. Dest is always a variable id;
// Src1/Src2 are operand Values. Which fields are meaningful depends on
// Op — see HasValidDest/Src1/Src2.
type Insn struct {
	Op   Op
	Dest int
	Src1 Value
	Src2 Value
}

// HasValidDest reports whether Dest is meaningful for this instruction.
func (in Insn) HasValidDest() bool {
	return in.Op != OpHalt && in.Op != OpJump && in.Op != OpStore
}

// HasValidSrc1 reports whether Src1 is meaningful for this instruction.
func (in Insn) HasValidSrc1() bool {
	return in.Op != OpHalt
}

// HasValidSrc2 reports whether Src2 is meaningful for this instruction.
func (in Insn) HasValidSrc2() bool {
	return in.Op != OpHalt && in.Op != OpMov && in.Op != OpLoad
}

func (in Insn) String() string {
	switch {
	case in.Op == OpHalt:
		return "halt"
	case in.Op == OpStore:
		return fmt.Sprintf("store [%v], %v", in.Src1, in.Src2)
	case in.Op == OpJump:
		return fmt.Sprintf("jump %v, %v", in.Src1, in.Src2)
	case in.Op == OpMov || in.Op == OpLoad:
		return fmt.Sprintf("v%d <- %v %v", in.Dest, in.Op, in.Src1)
	default:
		return fmt.Sprintf("v%d <- %v %v, %v", in.Dest, in.Op, in.Src1, in.Src2)
	}
}

// Program is the output of the IR compiler: a linear instruction stream,
// a static-data blob, and the count of abstract variables introduced.
type Program struct {
	Code         []Insn
	Data         []uint32
	NumVariables int
}
