package ir

import (
	"github.com/tinylisp/tlc/lang"
)

const mmioAddr = 3

// unpatchedJumpMagic is a sentinel placed into a jump's target constant
// until patchJumpToHere overwrites it. It is never a value a real target
// could legitimately take, given the data+code sizes this compiler
// produces.
const unpatchedJumpMagic = 0x7FFFDEAD

// label is a code position: the index into the code slice that a
// backward jump lands on, taken with labelHere before the target is
// emitted. Forward jumps are tracked by jumpID instead (see
// emitUnpatchedJump).
type label int32

// compiler walks a lang.Forest, emitting Insns and accumulating static
// data. Variables are allocated monotonically and keyed by identifier
// text; the Forest must outlive the compiler's use of identifier bytes,
// which we copy into the name table at insertion time.
type compiler struct {
	data  []uint32
	code  []Insn
	nextV int
	vars  map[string]int
}

// Compile lowers a parsed Forest into an ir.Program.
func Compile(forest *lang.Forest) (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				prog = nil
				return
			}
			panic(r)
		}
	}()

	c := &compiler{
		// word 0: entry jump; words 1,2: prefetch guard before MMIO;
		// word 3: MMIO.
		data: make([]uint32, 4),
		vars: map[string]int{},
	}

	for i := range forest.Exprs {
		if _, err := c.compileCall(&forest.Exprs[i]); err != nil {
			return nil, err
		}
	}

	c.emit(OpHalt, 0, Value{}, Value{})

	return &Program{Code: c.code, Data: c.data, NumVariables: c.nextV}, nil
}

func (c *compiler) newVar() int {
	id := c.nextV
	c.nextV++
	return id
}

func (c *compiler) emit(op Op, dest int, src1, src2 Value) Value {
	c.code = append(c.code, Insn{Op: op, Dest: dest, Src1: src1, Src2: src2})
	return Var(dest)
}

func (c *compiler) emitMov(dest int, src Value) Value {
	return c.emit(OpMov, dest, src, Value{})
}

func (c *compiler) emitLoad(dest int, addr Value) Value {
	return c.emit(OpLoad, dest, addr, Value{})
}

func (c *compiler) emitStore(value, addr Value) Value {
	c.emit(OpStore, 0, addr, value)
	return value
}

func (c *compiler) labelHere() label {
	return label(len(c.code))
}

func (c *compiler) emitJumpTo(target label, cond Value) {
	c.emit(OpJump, 0, cond, Const(int32(target)))
}

// jumpID identifies an emitted jump awaiting patching, by its index in
// c.code.
type jumpID int

func (c *compiler) emitUnpatchedJump(cond Value) jumpID {
	id := jumpID(len(c.code))
	c.emit(OpJump, 0, cond, Const(unpatchedJumpMagic))
	return id
}

func (c *compiler) patchJumpToHere(id jumpID) {
	insn := &c.code[id]
	if insn.Src2.ConstValue() != unpatchedJumpMagic {
		panic("ir: patchJumpToHere called on an already-patched jump")
	}
	insn.Src2 = Const(int32(c.labelHere()))
}

// compileCall compiles a top-level or nested parenthesized call node.
func (c *compiler) compileCall(node *lang.Node) (Value, error) {
	children := node.Children
	if len(children) == 0 {
		panic("ir: empty call reached compileCall; parser should have rejected it")
	}

	head := &children[0]
	args := children[1:]

	if head.Kind != lang.NodeIdent {
		return Value{}, ErrIndirectCall
	}
	name := head.Ident

	// Intrinsics see raw AST: they decide what gets evaluated.
	if v, handled, err := c.maybeEmitIntrinsic(name, args); handled {
		return v, err
	}

	inputs := make([]Value, len(args))
	for i := range args {
		v, err := c.compileNode(&args[i])
		if err != nil {
			return Value{}, err
		}
		inputs[i] = v
	}

	if v, handled, err := c.maybeEmitBinop(name, inputs); handled {
		return v, err
	}
	if v, handled, err := c.maybeEmitLassoc(name, inputs); handled {
		return v, err
	}

	switch name {
	case "progn":
		if len(inputs) == 0 {
			return Value{}, ErrEmptyProgn
		}
		return inputs[len(inputs)-1], nil
	case "read-mem":
		if len(inputs) != 1 {
			return Value{}, ErrArity{Func: "read-mem", Want: "1", Got: len(inputs)}
		}
		return c.emitLoad(c.newVar(), inputs[0]), nil
	case "write-mem":
		if len(inputs) != 2 {
			return Value{}, ErrArity{Func: "write-mem", Want: "2", Got: len(inputs)}
		}
		return c.emitStore(inputs[1], inputs[0]), nil
	case "print-str":
		if len(inputs) != 1 {
			return Value{}, ErrArity{Func: "print-str", Want: "1", Got: len(inputs)}
		}
		return c.emitPrintStr(inputs[0]), nil
	}

	return Value{}, ErrUnknownFunction(name)
}

// compileNode compiles any AST node into an IR Value.
func (c *compiler) compileNode(node *lang.Node) (Value, error) {
	switch node.Kind {
	case lang.NodeIdent:
		id, ok := c.vars[node.Ident]
		if !ok {
			return Value{}, ErrUndeclaredVariable(node.Ident)
		}
		return Var(id), nil
	case lang.NodeInt:
		return Const(node.Int), nil
	case lang.NodeStr:
		return c.compileString(node.Str), nil
	case lang.NodeCall:
		return c.compileCall(node)
	default:
		panic("ir: unknown AST node kind")
	}
}

// compileString emits a length-prefixed byte run into the data segment
// and returns the address of its length word.
func (c *compiler) compileString(s []byte) Value {
	address := int32(len(c.data))
	c.data = append(c.data, uint32(len(s)))
	for _, b := range s {
		c.data = append(c.data, uint32(b))
	}
	return Const(address)
}

// =============================================================================
// Intrinsics: set, if, while, alloc-static.

func (c *compiler) maybeEmitIntrinsic(name string, args []lang.Node) (Value, bool, error) {
	switch name {
	case "set":
		if len(args) != 2 || args[0].Kind != lang.NodeIdent {
			return Value{}, true, ErrBadIntrinsicSyntax{Intrinsic: "set", Syntax: "(set var-name expression)"}
		}
		id, ok := c.vars[args[0].Ident]
		if !ok {
			id = c.newVar()
			c.vars[args[0].Ident] = id
		}
		src, err := c.compileNode(&args[1])
		if err != nil {
			return Value{}, true, err
		}
		return c.emitMov(id, src), true, nil

	case "if":
		if len(args) != 3 {
			return Value{}, true, ErrBadIntrinsicSyntax{Intrinsic: "if", Syntax: "(if cond-expr then-expr else-expr)"}
		}
		result := c.newVar()

		cond, err := c.compileNode(&args[0])
		if err != nil {
			return Value{}, true, err
		}
		jumpToThen := c.emitUnpatchedJump(cond)

		elseVal, err := c.compileNode(&args[2])
		if err != nil {
			return Value{}, true, err
		}
		c.emitMov(result, elseVal)
		jumpToEnd := c.emitUnpatchedJump(Const(1))

		c.patchJumpToHere(jumpToThen)
		thenVal, err := c.compileNode(&args[1])
		if err != nil {
			return Value{}, true, err
		}
		c.emitMov(result, thenVal)

		c.patchJumpToHere(jumpToEnd)
		return Var(result), true, nil

	case "while":
		if len(args) != 2 {
			return Value{}, true, ErrBadIntrinsicSyntax{Intrinsic: "while", Syntax: "(while cond-expr body-expr)"}
		}
		top := c.labelHere()
		cond, err := c.compileNode(&args[0])
		if err != nil {
			return Value{}, true, err
		}
		inverse := c.emit(OpCmpEqu, c.newVar(), cond, Const(0))
		jumpToEnd := c.emitUnpatchedJump(inverse)

		if _, err := c.compileNode(&args[1]); err != nil {
			return Value{}, true, err
		}
		c.emitJumpTo(top, Const(1))
		c.patchJumpToHere(jumpToEnd)
		return Const(0), true, nil

	case "alloc-static":
		if len(args) != 1 || args[0].Kind != lang.NodeInt || args[0].Int <= 0 {
			return Value{}, true, ErrBadIntrinsicSyntax{Intrinsic: "alloc-static", Syntax: "(alloc-static positive-literal-count)"}
		}
		address := int32(len(c.data))
		c.data = append(c.data, make([]uint32, args[0].Int)...)
		return Const(address), true, nil
	}

	return Value{}, false, nil
}

// =============================================================================
// Builtins: all arguments are pre-evaluated Values.

func (c *compiler) maybeEmitBinop(name string, inputs []Value) (Value, bool, error) {
	var op Op
	switch name {
	case "-":
		op = OpSub
	case "/":
		op = OpDiv
	case "%":
		op = OpMod
	case "=":
		op = OpCmpEqu
	case ">":
		op = OpCmpGt
	case "<":
		op = OpCmpLt
	default:
		return Value{}, false, nil
	}

	if len(inputs) != 2 {
		return Value{}, true, ErrArity{Func: name, Want: "2", Got: len(inputs)}
	}
	return c.emit(op, c.newVar(), inputs[0], inputs[1]), true, nil
}

func (c *compiler) maybeEmitLassoc(name string, inputs []Value) (Value, bool, error) {
	var op Op
	switch name {
	case "+":
		op = OpAdd
	case "*":
		op = OpMul
	default:
		return Value{}, false, nil
	}

	if len(inputs) < 2 {
		return Value{}, true, ErrArity{Func: name, Want: "at least 2", Got: len(inputs)}
	}

	latest := inputs[0]
	for _, in := range inputs[1:] {
		latest = c.emit(op, c.newVar(), latest, in)
	}
	return latest, true, nil
}

// emitPrintStr emits a loop that treats str as a pointer to a
// length-prefixed word sequence and stores each word to the MMIO
// address.
func (c *compiler) emitPrintStr(str Value) Value {
	counter := c.emitLoad(c.newVar(), str).VarID()
	pointer := c.emit(OpAdd, c.newVar(), str, Const(1)).VarID()

	isZero := c.emit(OpCmpEqu, c.newVar(), Var(counter), Const(0))
	skipLoop := c.emitUnpatchedJump(isZero)

	top := c.labelHere()
	character := c.emitLoad(c.newVar(), Var(pointer))
	c.emitStore(character, Const(mmioAddr))

	tmp := c.newVar()
	c.emit(OpAdd, tmp, Var(pointer), Const(1))
	c.emitMov(pointer, Var(tmp))

	c.emit(OpSub, tmp, Var(counter), Const(1))
	c.emitMov(counter, Var(tmp))
	c.emitJumpTo(top, Var(counter))

	c.patchJumpToHere(skipLoop)
	return Const(0)
}
