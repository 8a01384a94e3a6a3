package ir_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinylisp/tlc/ir"
	"github.com/tinylisp/tlc/lang"
)

func compileSrc(t *testing.T, src string) *ir.Program {
	t.Helper()
	forest, err := lang.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("lang.Parse: %v", err)
	}
	prog, err := ir.Compile(forest)
	if err != nil {
		t.Fatalf("ir.Compile: %v", err)
	}
	return prog
}

func TestCompileAppendsFinalHalt(t *testing.T) {
	assert := assert.New(t)

	prog := compileSrc(t, `(set x 1)`)

	assert.Equal(ir.OpHalt, prog.Code[len(prog.Code)-1].Op)
}

func TestCompileReservesFourStaticDataWords(t *testing.T) {
	assert := assert.New(t)

	prog := compileSrc(t, `(set x 1)`)

	assert.GreaterOrEqual(len(prog.Data), 4)
}

func TestCompileSetDeclaresAndRebinds(t *testing.T) {
	assert := assert.New(t)

	prog := compileSrc(t, `(set x 1) (set x 2)`)

	var movs int
	for _, insn := range prog.Code {
		if insn.Op == ir.OpMov {
			movs++
		}
	}
	assert.Equal(2, movs)
}

func TestCompileUndeclaredVariableFails(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`(write-mem 0 x)`))
	assert.NoError(err)

	_, err = ir.Compile(forest)
	assert.Error(err)
	assert.ErrorAs(err, new(ir.ErrUndeclaredVariable))
}

func TestCompileUnknownFunctionFails(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`(frobnicate 1 2)`))
	assert.NoError(err)

	_, err = ir.Compile(forest)
	assert.Error(err)
	assert.ErrorAs(err, new(ir.ErrUnknownFunction))
}

func TestCompileIndirectCallFails(t *testing.T) {
	assert := assert.New(t)

	forest, err := lang.Parse(strings.NewReader(`((foo) 1 2)`))
	assert.NoError(err)

	_, err = ir.Compile(forest)
	assert.ErrorIs(err, ir.ErrIndirectCall)
}

func TestCompileVariadicPlusIsLeftAssociative(t *testing.T) {
	assert := assert.New(t)

	prog := compileSrc(t, `(write-mem 0 (+ 1 2 3))`)

	var adds []ir.Insn
	for _, insn := range prog.Code {
		if insn.Op == ir.OpAdd {
			adds = append(adds, insn)
		}
	}
	assert.Equal(2, len(adds))
	if len(adds) == 2 {
		// ((1 + 2) + 3): the second add consumes the first's result.
		assert.Equal(ir.Var(adds[0].Dest), adds[1].Src1)
		assert.Equal(ir.Const(3), adds[1].Src2)
	}
}

func TestCompileWhileEmitsBackwardJump(t *testing.T) {
	assert := assert.New(t)

	prog := compileSrc(t, `(set i 0) (while (< i 3) (set i (+ i 1)))`)

	found := false
	for idx, insn := range prog.Code {
		if insn.Op == ir.OpJump && !insn.Src1.IsVar() && insn.Src1.ConstValue() != 0 {
			// unconditional backward jump: target index less than this insn's own index
			if int(insn.Src2.ConstValue()) < idx {
				found = true
			}
		}
	}
	assert.True(found, "expected an unconditional backward jump in while's codegen")
}

func TestCompilePrintStrEmptyStringOccupiesOneWord(t *testing.T) {
	assert := assert.New(t)

	before := compileSrc(t, `(set x 1)`)
	after := compileSrc(t, `(print-str "")`)

	// An empty string contributes exactly one length-prefix word (0)
	// beyond the 4 reserved words, plus no payload bytes.
	assert.Equal(len(before.Data)+1, len(after.Data))
	assert.Equal(uint32(0), after.Data[len(after.Data)-1])
}

func TestCompileAllocStaticReservesWords(t *testing.T) {
	assert := assert.New(t)

	prog := compileSrc(t, `(set p (alloc-static 5))`)

	assert.GreaterOrEqual(len(prog.Data), 9)
}
