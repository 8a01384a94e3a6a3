package ir

import "fmt"

// Value is either a Const or a Var; the two operand shapes an IR
// instruction can reference.
type Value struct {
	isVar bool
	con   int32
	vr    int
}

// Const builds a constant Value.
func Const(v int32) Value { return Value{isVar: false, con: v} }

// Var builds a variable-reference Value.
func Var(id int) Value { return Value{isVar: true, vr: id} }

// IsVar reports whether this Value names a Variable rather than a Const.
func (v Value) IsVar() bool { return v.isVar }

// ConstValue returns the constant payload; only meaningful if !IsVar().
func (v Value) ConstValue() int32 { return v.con }

// VarID returns the variable id; only meaningful if IsVar().
func (v Value) VarID() int { return v.vr }

func (v Value) String() string {
	if v.isVar {
		return fmt.Sprintf("v%d", v.vr)
	}
	return fmt.Sprintf("#%d", v.con)
}

// Op is an IR opcode.
type Op int

const (
	OpHalt Op = iota
	OpMov
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpCmpEqu
	OpCmpGt
	OpCmpLt
	OpJump
)

func (op Op) String() string {
	switch op {
	case OpHalt:
		return "halt"
	case OpMov:
		return "mov"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpMod:
		return "mod"
	case OpCmpEqu:
		return "cmp_equ"
	case OpCmpGt:
		return "cmp_gt"
	case OpCmpLt:
		return "cmp_lt"
	case OpJump:
		return "jump"
	default:
		return "?"
	}
}
